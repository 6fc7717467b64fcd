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

package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToString accepts strings and scalars that print unambiguously.
func ToString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int, int32, int64, bool, json.Number:
		return fmt.Sprint(t), nil
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("expected a string, got %T", v)
}

// ToInt accepts ints, integral floats (JSON numbers) and numeric strings.
func ToInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

var (
	truthy = map[string]bool{"yes": true, "true": true, "on": true, "enabled": true, "1": true}
	falsy  = map[string]bool{"no": true, "false": true, "off": true, "disabled": true, "0": true}
)

// ToBool accepts booleans, 0/1 and the usual yes/no spellings.
func ToBool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int, int64, float64:
		n, err := ToInt(t)
		if err == nil && (n == 0 || n == 1) {
			return n == 1, nil
		}
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if truthy[s] {
			return true, nil
		}
		if falsy[s] {
			return false, nil
		}
	}
	return false, fmt.Errorf("%v is not a boolean", v)
}

// ToStringList accepts lists of scalars and comma separated strings. An
// empty string yields an empty, non-nil list.
func ToStringList(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return append([]string{}, t...), nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, err := ToString(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %v", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		out := []string{}
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list, got %T", v)
}

// ToObjectList accepts a list of mappings, as produced by YAML or JSON.
func ToObjectList(v interface{}) ([]map[string]interface{}, error) {
	switch t := v.(type) {
	case []map[string]interface{}:
		return t, nil
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(t))
		for i, item := range t {
			m, err := ToObject(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %v", i, err)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of objects, got %T", v)
}

// ToObject normalizes YAML's map[interface{}]interface{} into string keys.
func ToObject(v interface{}) (map[string]interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected an object, got %T", v)
}

// Normalize recursively converts YAML decoded values into the JSON shaped
// types the rest of the package expects.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m, _ := ToObject(t)
		return m
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	}
	return v
}
