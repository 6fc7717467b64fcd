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
package state

import (
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/resource"
)

// CompareContext gives comparators access to the rest of the desired state,
// e.g. the update_secret option.
type CompareContext struct {
	Kind    *resource.Kind
	Field   *resource.Field
	Desired *DesiredState
}

// Comparator reports whether want and have are equal.
type Comparator func(want, have interface{}, c CompareContext) bool

// Differ computes ChangeSets. The zero value is not usable, use NewDiffer.
type Differ struct {
	mu sync.RWMutex
	// builtin comparators by the name a Field asks for
	named map[string]Comparator
	// overrides keyed by kind/field
	fields map[string]Comparator
}

func NewDiffer() *Differ {
	return &Differ{
		named: map[string]Comparator{
			resource.CompareDefault:       CompareDefault,
			resource.CompareUnordered:     CompareUnordered,
			resource.CompareObjectsByName: CompareObjectsByKey("name"),
			resource.CompareSecret:        CompareSecret,
		},
		fields: map[string]Comparator{},
	}
}

// Register overrides the comparator of one field of one kind.
func (d *Differ) Register(kind, field string, c Comparator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields[kind+"/"+field] = c
}

// RegisterNamed makes c available to fields whose Compare is name.
func (d *Differ) RegisterNamed(name string, c Comparator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.named[name] = c
}

func (d *Differ) comparator(kind *resource.Kind, f *resource.Field) Comparator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.fields[kind.Name+"/"+f.Logical]; ok {
		return c
	}
	if c, ok := d.named[f.Compare]; ok {
		return c
	}
	return CompareDefault
}

// Diff returns the updatable fields that are set in want and differ from
// have, in field table order. It has no side effects.
func (d *Differ) Diff(want *DesiredState, have *CurrentState) ChangeSet {
	kind := want.Kind
	cs := ChangeSet{}
	for i := range kind.Fields {
		f := &kind.Fields[i]
		if !f.Updatable() {
			continue
		}
		w, ok := want.Get(f.Logical)
		if !ok {
			continue
		}
		h, _ := have.Get(f.Logical)
		if d.comparator(kind, f)(w, h, CompareContext{Kind: kind, Field: f, Desired: want}) {
			continue
		}
		cs = append(cs, Change{Field: f.Logical, Value: w, Old: h})
	}
	return cs
}

// CreateOnlyConflicts lists create-only fields whose wanted value differs
// from the device.
func (d *Differ) CreateOnlyConflicts(want *DesiredState, have *CurrentState) []string {
	var conflicts []string
	for i := range want.Kind.Fields {
		f := &want.Kind.Fields[i]
		if !f.CreateOnly {
			continue
		}
		w, ok := want.Get(f.Logical)
		if !ok {
			continue
		}
		h, _ := have.Get(f.Logical)
		if !d.comparator(want.Kind, f)(w, h, CompareContext{Kind: want.Kind, Field: f, Desired: want}) {
			conflicts = append(conflicts, f.Logical)
		}
	}
	return conflicts
}

// Full is the ChangeSet of a create: every set field that reaches the
// device, in field table order.
func Full(want *DesiredState) ChangeSet {
	cs := ChangeSet{}
	for i := range want.Kind.Fields {
		f := &want.Kind.Fields[i]
		if f.Option || f.Wire == "" {
			continue
		}
		if v, ok := want.Get(f.Logical); ok {
			cs = append(cs, Change{Field: f.Logical, Value: v})
		}
	}
	return cs
}

// normalize folds the "none" equivalents into nil.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" || t == "none" {
			return nil
		}
	case []string:
		if len(t) == 0 || (len(t) == 1 && t[0] == "none") {
			return nil
		}
	case []interface{}:
		if len(t) == 0 {
			return nil
		}
	case []map[string]interface{}:
		if len(t) == 0 {
			return nil
		}
	case map[string]interface{}:
		if len(t) == 0 {
			return nil
		}
	}
	return v
}

// CompareDefault is go-cmp equality after folding "", "none", absent and
// empty lists together.
func CompareDefault(want, have interface{}, _ CompareContext) bool {
	return cmp.Equal(normalize(want), normalize(have), cmpopts.EquateEmpty())
}

// CompareUnordered treats string lists as sets.
func CompareUnordered(want, have interface{}, c CompareContext) bool {
	w, h := normalize(want), normalize(have)
	if w == nil || h == nil {
		return w == nil && h == nil
	}
	wl, errW := params.ToStringList(w)
	hl, errH := params.ToStringList(h)
	if errW != nil || errH != nil {
		return CompareDefault(want, have, c)
	}
	return cmp.Equal(wl, hl, cmpopts.SortSlices(func(a, b string) bool { return a < b }))
}

// CompareObjectsByKey matches lists of objects on key; order is ignored.
func CompareObjectsByKey(key string) Comparator {
	return func(want, have interface{}, c CompareContext) bool {
		w, h := normalize(want), normalize(have)
		if w == nil || h == nil {
			return w == nil && h == nil
		}
		wl, errW := params.ToObjectList(w)
		hl, errH := params.ToObjectList(h)
		if errW != nil || errH != nil {
			return CompareDefault(want, have, c)
		}
		if len(wl) != len(hl) {
			return false
		}
		return cmp.Equal(indexBy(key, wl), indexBy(key, hl))
	}
}

func indexBy(key string, l []map[string]interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(l))
	for _, obj := range l {
		k, _ := params.ToString(obj[key])
		out[k] = obj
	}
	return out
}

// CompareSecret never sees the device value. Only update_secret=always
// sends the secret on every update; unset behaves as on_create and leaves
// it alone once the resource exists.
func CompareSecret(want, _ interface{}, c CompareContext) bool {
	if c.Desired == nil || c.Desired.String("update_secret") != resource.UpdateSecretAlways {
		return true
	}
	return normalize(want) == nil
}
