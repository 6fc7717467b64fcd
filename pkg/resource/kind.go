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
	"fmt"
	"strings"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
	"k8s.io/apimachinery/pkg/util/sets"
)

// ResourcePath is the URL path of a single resource.
func (k *Kind) ResourcePath(id Identity) string {
	if k.NoPartition {
		return k.Collection + "/" + id.Name
	}
	return k.Collection + "/" + id.URIName()
}

// ReadPath is ResourcePath plus the query a full read needs.
func (k *Kind) ReadPath(id Identity) string {
	if k.Expand {
		return k.ResourcePath(id) + "?expandSubcollections=true"
	}
	return k.ResourcePath(id)
}

// ExistsPath asks only for the name, which is enough to check existence.
func (k *Kind) ExistsPath(id Identity) string {
	return k.ResourcePath(id) + "?$select=name"
}

// IsAction reports whether the kind runs a command rather than CRUD calls.
func (k *Kind) IsAction() bool {
	return k.Action != nil
}

// Field returns the field with the given logical name.
func (k *Kind) Field(logical string) (*Field, bool) {
	for i := range k.Fields {
		if k.Fields[i].Logical == logical {
			return &k.Fields[i], true
		}
	}
	return nil, false
}

// Identity builds the identity for name and partition, dropping the
// partition for kinds that have none.
func (k *Kind) Identity(name, partition string) Identity {
	if k.NoPartition {
		return Identity{Name: name}
	}
	return NewIdentity(name, partition)
}

// CheckIdentity rejects names outside AllowedNames.
func (k *Kind) CheckIdentity(id Identity) error {
	if id.Name == "" {
		return params.Invalid("name", "a name is required for %s", k.Name)
	}
	if len(k.AllowedNames) == 0 {
		return nil
	}
	if !sets.NewString(k.AllowedNames...).Has(id.Name) {
		return params.Invalid("name", "value %q must be one of: %s", id.Name, strings.Join(k.AllowedNames, ", "))
	}
	return nil
}

// Schema is the JSON schema of the kind's parameters. Unknown parameters
// are rejected.
func (k *Kind) Schema() map[string]interface{} {
	props := map[string]interface{}{}
	for i := range k.Fields {
		f := &k.Fields[i]
		for _, key := range f.Keys() {
			props[key] = f.schema()
		}
	}
	return map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// Parse validates p and returns the logical values that were supplied,
// keyed by logical name, plus deprecation warnings.
func (k *Kind) Parse(id Identity, state string, p *params.Params) (map[string]interface{}, []string, error) {
	if err := params.ValidateSchema(k.Schema(), p.Map()); err != nil {
		return nil, nil, err
	}

	values := map[string]interface{}{}
	var warnings []string
	var errs []error

	for i := range k.Fields {
		f := &k.Fields[i]
		key := f.Logical
		if !p.Has(key) {
			key = ""
		}
		for _, alias := range f.Aliases {
			if !p.Has(alias.Name) {
				continue
			}
			if key != "" {
				errs = append(errs, params.Invalid(alias.Name, "parameters are mutually exclusive: %s, %s", key, alias.Name))
				continue
			}
			key = alias.Name
			if alias.Deprecated {
				warnings = append(warnings, fmt.Sprintf(
					"Usage of the '%s' parameter is deprecated. Please use '%s'", alias.Name, f.Logical))
			}
		}
		if key == "" {
			continue
		}

		v, ok, err := f.parse(p, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if f.Coerce != nil {
			if v, err = f.Coerce(v); err != nil {
				errs = append(errs, params.Invalid(key, "%v", err))
				continue
			}
		}
		values[f.Logical] = f.qualify(v, id.Partition)
	}

	if len(errs) == 0 && k.Validate != nil {
		if err := k.Validate(values, state); err != nil {
			errs = append(errs, err)
		}
	}
	if err := params.Aggregate(errs); err != nil {
		return nil, warnings, err
	}
	return values, warnings, nil
}

// MissingRequired lists the Required fields absent from values.
func (k *Kind) MissingRequired(values map[string]interface{}) []string {
	var missing []string
	for _, req := range k.Required {
		if _, ok := values[req]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

// WirePayload converts logical values into a request body. Option fields
// and fields not in values are left out.
func (k *Kind) WirePayload(values map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{}
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Option || f.Wire == "" {
			continue
		}
		if v, ok := values[f.Logical]; ok {
			body[f.Wire] = f.wire(v)
		}
	}
	return body
}

// CreatePayload is the identity plus every supplied field.
func (k *Kind) CreatePayload(id Identity, values map[string]interface{}) map[string]interface{} {
	body := k.WirePayload(values)
	body["name"] = id.Name
	if !k.NoPartition && id.Partition != "" {
		body["partition"] = id.Partition
	}
	return body
}

// FromDevice maps a device body onto logical values using the field table.
// WriteOnly and option fields are never populated.
func (k *Kind) FromDevice(body map[string]interface{}) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	for i := range k.Fields {
		f := &k.Fields[i]
		if f.Option || f.WriteOnly || (f.Wire == "" && f.Read == nil) {
			continue
		}
		v, ok, err := f.read(body)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to read %s from device: %v", k.Name, f.Logical, err)
		}
		if ok {
			values[f.Logical] = v
		}
	}
	return values, nil
}
