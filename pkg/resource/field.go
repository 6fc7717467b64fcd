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
	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
)

// Updatable fields take part in diffs and PATCH bodies.
func (f *Field) Updatable() bool {
	return !f.Option && !f.CreateOnly && f.Wire != ""
}

// Keys returns the logical name followed by every alias.
func (f *Field) Keys() []string {
	keys := []string{f.Logical}
	for _, a := range f.Aliases {
		keys = append(keys, a.Name)
	}
	return keys
}

// parse reads the field from p under key with the accessor for its type.
func (f *Field) parse(p *params.Params, key string) (interface{}, bool, error) {
	var v interface{}
	var ok bool
	var err error
	switch f.Type {
	case TypeInt:
		if f.Min != nil && f.Max != nil {
			v, ok, err = p.IntRange(key, *f.Min, *f.Max)
		} else {
			v, ok, err = p.Int(key)
		}
	case TypeBool:
		v, ok, err = p.Bool(key)
	case TypePort:
		v, ok, err = p.Port(key)
	case TypeIP:
		v, ok, err = p.IPAddress(key)
	case TypeEnum:
		v, ok, err = p.Enum(key, f.Enum...)
	case TypeStringList:
		v, ok, err = p.StringList(key)
	case TypeObjectList:
		v, ok, err = p.ObjectList(key)
	default:
		v, ok, err = p.String(key)
	}
	if !ok || err != nil {
		return nil, ok, err
	}
	return v, true, nil
}

// qualify prefixes bare names with the partition.
func (f *Field) qualify(v interface{}, partition string) interface{} {
	if !f.Qualify {
		return v
	}
	switch t := v.(type) {
	case string:
		return qualifyName(partition, t)
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = qualifyName(partition, s)
		}
		return out
	}
	return v
}

// reserved names are never qualified
var reservedNames = map[string]bool{"": true, "none": true, "default": true}

func qualifyName(partition, name string) string {
	if reservedNames[name] {
		return name
	}
	return params.FQName(partition, name)
}

// wire converts a logical value for a request body.
func (f *Field) wire(v interface{}) interface{} {
	if f.ToWire != nil {
		return f.ToWire(v)
	}
	return v
}

// read extracts and converts the field from a device body.
func (f *Field) read(body map[string]interface{}) (interface{}, bool, error) {
	var raw interface{}
	var ok bool
	if f.Read != nil {
		raw, ok = f.Read(body)
	} else {
		raw, ok = body[f.Wire]
	}
	if !ok || raw == nil {
		return nil, false, nil
	}
	if f.FromWire != nil {
		v, err := f.FromWire(raw)
		return v, err == nil, err
	}
	v, err := coerce(f.Type, raw)
	return v, err == nil, err
}

func coerce(t FieldType, raw interface{}) (interface{}, error) {
	switch t {
	case TypeInt:
		return params.ToInt(raw)
	case TypePort:
		return params.ToPort(raw)
	case TypeBool:
		return params.ToBool(raw)
	case TypeStringList:
		return params.ToStringList(raw)
	case TypeObjectList:
		return params.ToObjectList(raw)
	}
	return params.ToString(raw)
}

// schema returns the JSON schema fragment for the field.
func (f *Field) schema() map[string]interface{} {
	switch f.Type {
	case TypeInt:
		extra := map[string]interface{}{}
		if f.Min != nil {
			extra["minimum"] = *f.Min
		}
		if f.Max != nil {
			extra["maximum"] = *f.Max
		}
		return params.SchemaProperty("int", extra)
	case TypePort:
		return params.SchemaProperty("int", nil)
	case TypeBool:
		return params.SchemaProperty("bool", nil)
	case TypeStringList:
		return params.SchemaProperty("list", nil)
	case TypeObjectList:
		return params.SchemaProperty("objects", nil)
	case TypeIP:
		return params.SchemaProperty("string", map[string]interface{}{"format": "bigipaddress"})
	case TypeEnum:
		return params.SchemaProperty("string", map[string]interface{}{"enum": f.Enum})
	}
	return params.SchemaProperty("string", nil)
}

func intPtr(n int) *int {
	return &n
}
