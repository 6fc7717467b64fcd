/*-
 * Copyright (c) 2024, F5 Networks, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package watchmanager

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/fsnotify/fsnotify"
	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultSettle collapses the burst of events a single save produces.
const DefaultSettle = 500 * time.Millisecond

// FileWatcher calls OnChange after any watched file is written, created,
// removed or renamed.
type FileWatcher struct {
	OnChange func()
	Settle   time.Duration
	files    sets.String
	dirs     sets.String
}

func NewFileWatcher(onChange func(), paths ...string) (*FileWatcher, error) {
	fw := &FileWatcher{
		OnChange: onChange,
		Settle:   DefaultSettle,
		files:    sets.NewString(),
		dirs:     sets.NewString(),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("unable to watch %s: %v", p, err)
		}
		fw.files.Insert(abs)
		// editors replace files, so the directory is watched
		fw.dirs.Insert(filepath.Dir(abs))
	}
	return fw, nil
}

// Run blocks until ctx is done. The ready channel, if not nil, is closed
// once every directory is being watched.
func (fw *FileWatcher) Run(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify init failed: %v", err)
	}
	defer watcher.Close()

	for _, dir := range fw.dirs.List() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("unable to watch %s: %v", dir, err)
		}
	}
	log.Debugf("[Watch Manager] Watching %v for changes", fw.files.List())
	if ready != nil {
		close(ready)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !fw.files.Has(filepath.Clean(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				log.Debugf("[Watch Manager] %s: %s", event.Op, event.Name)
				pending = time.After(fw.Settle)
			}
		case <-pending:
			pending = nil
			fw.OnChange()
		case err, ok := <-watcher.Errors:
			if ok {
				log.Errorf("[Watch Manager] fsnotify error: %v", err)
			}
		}
	}
}
