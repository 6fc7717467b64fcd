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

package resource

import (
	"sort"
	"strings"
	"sync"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
)

var (
	kindsMu sync.RWMutex
	kinds   = map[string]*Kind{}
)

// Register adds k to the registry, replacing a kind with the same name.
func Register(k *Kind) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds[k.Name] = k
}

// Lookup returns the registered kind or a ValidationError naming the
// supported kinds.
func Lookup(name string) (*Kind, error) {
	kindsMu.RLock()
	k, ok := kinds[name]
	kindsMu.RUnlock()
	if !ok {
		return nil, params.Invalid("kind", "unsupported kind %q, must be one of: %s", name, strings.Join(Names(), ", "))
	}
	return k, nil
}

// Names lists the registered kinds in sorted order.
func Names() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
