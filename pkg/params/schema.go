/*-
 * Copyright (c) 2016-2024, F5 Networks, Inc.
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

package params

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Big-IP address checkers, route domain suffix allowed
type BigIPv4FormatChecker struct{}

func (f BigIPv4FormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	return ok && IsValidIPv4(s)
}

type BigIPv6FormatChecker struct{}

func (f BigIPv6FormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	return ok && IsValidIPv6(s)
}

type BigIPAddressFormatChecker struct{}

func (f BigIPAddressFormatChecker) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	return ok && IsValidIP(s)
}

var registerOnce sync.Once

// RegisterBigIPSchemaTypes adds the bigipv4, bigipv6 and bigipaddress
// formats to gojsonschema.
func RegisterBigIPSchemaTypes() {
	registerOnce.Do(func() {
		gojsonschema.FormatCheckers.Add("bigipv4", BigIPv4FormatChecker{})
		gojsonschema.FormatCheckers.Add("bigipv6", BigIPv6FormatChecker{})
		gojsonschema.FormatCheckers.Add("bigipaddress", BigIPAddressFormatChecker{})
	})
}

// ValidateSchema checks doc against schema and returns every violation as
// an aggregated ValidationError.
func ValidateSchema(schema, doc map[string]interface{}) error {
	RegisterBigIPSchemaTypes()

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("unable to validate parameters: %v", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []error
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			} else {
				field = ""
			}
		}
		errs = append(errs, &ValidationError{Field: field, Message: desc.Description()})
	}
	return Aggregate(errs)
}

// SchemaProperty returns a JSON schema fragment for a parameter kind.
func SchemaProperty(typ string, extra map[string]interface{}) map[string]interface{} {
	prop := map[string]interface{}{}
	switch strings.ToLower(typ) {
	case "int":
		prop["type"] = []string{"integer", "string"}
	case "bool":
		prop["type"] = []string{"boolean", "string", "integer"}
	case "list":
		prop["type"] = []string{"array", "string"}
	case "objects":
		prop["type"] = "array"
		prop["items"] = map[string]interface{}{"type": "object"}
	default:
		prop["type"] = "string"
	}
	for k, v := range extra {
		prop[k] = v
	}
	return prop
}
