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
// Package state reads resources from the device and computes the minimal
// set of changes between what is wanted and what is there.
package state

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/resource"
)

// DesiredState is what the caller asked for. It owns a private copy of the
// values and never changes after construction.
type DesiredState struct {
	Kind     *resource.Kind
	Identity resource.Identity
	State    string
	values   map[string]interface{}
}

// NewDesiredState deep copies values.
func NewDesiredState(kind *resource.Kind, id resource.Identity, state string, values map[string]interface{}) (*DesiredState, error) {
	if state == "" {
		state = resource.StatePresent
	}
	d := &DesiredState{Kind: kind, Identity: id, State: state, values: map[string]interface{}{}}
	if len(values) > 0 {
		if err := deepcopy.Copy(&d.values, values); err != nil {
			return nil, fmt.Errorf("unable to copy desired state for %s: %v", id, err)
		}
	}
	return d, nil
}

// Get returns the value of a logical field and whether it was set.
func (d *DesiredState) Get(field string) (interface{}, bool) {
	v, ok := d.values[field]
	return v, ok
}

func (d *DesiredState) Has(field string) bool {
	_, ok := d.values[field]
	return ok
}

// Values returns a copy of every set field.
func (d *DesiredState) Values() map[string]interface{} {
	out := map[string]interface{}{}
	deepcopy.Copy(&out, d.values)
	return out
}

// String reads an option such as update_secret; "" when unset.
func (d *DesiredState) String(field string) string {
	s, _ := d.values[field].(string)
	return s
}

// CurrentState is the device view of a resource, keyed by logical name.
type CurrentState struct {
	Identity resource.Identity
	Values   map[string]interface{}
	// Raw is the undecoded device body
	Raw map[string]interface{}
}

func (c *CurrentState) Get(field string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.Values[field]
	return v, ok
}

// Change is one field to send to the device.
type Change struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
	Old   interface{} `json:"old,omitempty"`
}

// ChangeSet keeps field table order.
type ChangeSet []Change

func (cs ChangeSet) Empty() bool {
	return len(cs) == 0
}

func (cs ChangeSet) Fields() []string {
	fields := make([]string, 0, len(cs))
	for _, c := range cs {
		fields = append(fields, c.Field)
	}
	return fields
}

// Values returns field -> desired value.
func (cs ChangeSet) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(cs))
	for _, c := range cs {
		out[c.Field] = c.Value
	}
	return out
}

func (cs ChangeSet) Get(field string) (interface{}, bool) {
	for _, c := range cs {
		if c.Field == field {
			return c.Value, true
		}
	}
	return nil, false
}
