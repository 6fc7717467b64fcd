/*-
 * Copyright (c) 2017-2021 F5 Networks, Inc.
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

// Package writer mirrors reconcile results into a JSON file. Each section
// becomes a top level key of the document, so sending "changed" and
// "results" yields the same object the CLI prints on stdout.
package writer

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

type Writer interface {
	GetOutputFilename() string
	Stop()
	SendSection(string, interface{}) (<-chan struct{}, <-chan error, error)
}

// Without a File interface unit testing becomes difficult,
// use an internal Interface which describes what we need
// from the file and which we can then mock in _test
type pseudoFileInterface interface {
	Close() error
	Fd() uintptr
	Truncate(size int64) error
	Write(b []byte) (n int, err error)
}

type resultsWriter struct {
	resultsFile string
	// set when the writer created its own directory and must clean it up
	tempDir    string
	stopCh     chan struct{}
	dataCh     chan resultSection
	sectionMap map[string]interface{}
}

type resultSection struct {
	name    string
	data    interface{}
	doneCh  chan struct{}
	errorCh chan error
}

// NewResultsWriter writes to path. An empty path writes to a private
// temporary directory that is removed on Stop.
func NewResultsWriter(path string) (Writer, error) {
	rw := &resultsWriter{
		resultsFile: path,
		stopCh:      make(chan struct{}),
		dataCh:      make(chan resultSection),
		sectionMap:  make(map[string]interface{}),
	}

	if path == "" {
		dir, err := ioutil.TempDir("", "bigip-reconcile.results")
		if nil != err {
			return nil, fmt.Errorf("could not create unique results directory: %v", err)
		}
		rw.tempDir = dir
		rw.resultsFile = filepath.Join(dir, "results.json")
	} else {
		dir := filepath.Dir(path)
		if info, err := os.Stat(dir); nil != err {
			return nil, fmt.Errorf("results directory %s is not usable: %v", dir, err)
		} else if !info.IsDir() {
			return nil, fmt.Errorf("results directory %s is not a directory", dir)
		}
	}

	go rw.waitData()

	log.Infof("[Results Writer] started: %s", rw.resultsFile)
	return rw, nil
}

func (rw *resultsWriter) GetOutputFilename() string {
	return rw.resultsFile
}

func (rw *resultsWriter) Stop() {
	defer func() {
		if r := recover(); r != nil {
			log.Warningf("[Results Writer] (%p) stop called after stop", rw)
		}
	}()

	rw.stopCh <- struct{}{}
	close(rw.stopCh)
	close(rw.dataCh)
	if rw.tempDir != "" {
		os.RemoveAll(rw.tempDir)
	}

	log.Infof("[Results Writer] stopped: %p", rw)
}

func (rw *resultsWriter) SendSection(
	name string,
	obj interface{},
) (<-chan struct{}, <-chan error, error) {
	if 0 == len(name) {
		return nil, nil, fmt.Errorf("cannot marshal section without name")
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warningf("[Results Writer] (%p) SendSection called after stop", rw)
		}
	}()

	log.Debugf("[Results Writer] (%p) writing section name %s", rw, name)

	done := make(chan struct{})
	err := make(chan error)
	rw.dataCh <- resultSection{
		name:    name,
		data:    obj,
		doneCh:  done,
		errorCh: err,
	}

	return done, err, nil
}

// WriteSections sends every section in name order and waits for each write.
func WriteSections(w Writer, sections map[string]interface{}, timeout time.Duration) error {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		doneCh, errCh, err := w.SendSection(name, sections[name])
		if nil != err {
			return err
		}
		select {
		case <-doneCh:
		case err := <-errCh:
			return fmt.Errorf("failed writing section %s to %s: %v", name, w.GetOutputFilename(), err)
		case <-time.After(timeout):
			return fmt.Errorf("timed out writing section %s to %s", name, w.GetOutputFilename())
		}
	}
	return nil
}

func (rw *resultsWriter) _lockAndWrite(
	f pseudoFileInterface,
	output []byte,
) (bool, error) {
	var wroteSome bool
	var err error

	flock := syscall.Flock_t{
		Type:   syscall.F_WRLCK,
		Start:  0,
		Len:    0,
		Whence: int16(os.SEEK_SET),
	}
	err = syscall.FcntlFlock(uintptr(f.Fd()), syscall.F_SETLKW, &flock)
	if nil != err {
		return wroteSome, err
	}

	err = f.Truncate(0)
	if nil != err {
		return wroteSome, err
	}
	n, err := f.Write(output)
	if nil != err {
		return 0 != n, err
	}
	wroteSome = true

	flock.Type = syscall.F_UNLCK
	err = syscall.FcntlFlock(uintptr(f.Fd()), syscall.F_SETLKW, &flock)
	return wroteSome, err
}

func (rw *resultsWriter) lockAndWrite(output []byte) (wroteSome bool, err error) {
	f, err := os.OpenFile(rw.resultsFile, os.O_WRONLY|os.O_CREATE, 0644)
	if nil != err {
		return wroteSome, err
	}

	defer func() {
		if err != nil {
			f.Close()
		} else {
			err = f.Close()
		}
	}()

	return rw._lockAndWrite(f, output)
}

func (rw *resultsWriter) waitData() {
	respondDone := func(d chan<- struct{}) {
		select {
		case d <- struct{}{}:
		case <-time.After(time.Second):
		}
	}
	respondErr := func(e chan<- error, err error) {
		select {
		case e <- err:
		case <-time.After(time.Second):
		}
	}
	for {
		select {
		case <-rw.stopCh:
			log.Debugf("[Results Writer] (%p) received stop signal", rw)
			return
		case rs := <-rw.dataCh:
			// check if this section will marshal
			if _, err := json.Marshal(rs.data); nil != err {
				log.Warningf("[Results Writer] (%p) received bad json for section (%s): %v",
					rw, rs.name, err)
				go respondErr(rs.errorCh, err)
				continue
			}
			rw.sectionMap[rs.name] = rs.data

			output, err := json.Marshal(rw.sectionMap)
			if nil != err {
				log.Warningf("[Results Writer] (%p) received marshal error (%s): %v",
					rw, rs.name, err)
				go respondErr(rs.errorCh, err)
				continue
			}

			wrote, err := rw.lockAndWrite(output)
			if nil != err {
				if wrote {
					log.Warningf("[Results Writer] (%p) errored during write of section (%s): %v",
						rw, rs.name, err)
				} else {
					log.Warningf("[Results Writer] (%p) failed to write section (%s): %v",
						rw, rs.name, err)
				}
				go respondErr(rs.errorCh, err)
			} else {
				log.Debugf("[Results Writer] (%p) successfully wrote section (%s)",
					rw, rs.name)
				go respondDone(rs.doneCh)
			}
		}
	}
}
