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

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
)

// JoinMonitors renders a monitor list as the "a and b" rule BIG-IP expects.
func JoinMonitors(v interface{}) interface{} {
	l, err := params.ToStringList(v)
	if err != nil || len(l) == 0 {
		return ""
	}
	return strings.Join(l, " and ")
}

// SplitMonitors parses "a and b" as well as "min 1 of { a b }" rules.
func SplitMonitors(raw interface{}) (interface{}, error) {
	s, err := params.ToString(raw)
	if err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	out := []string{}
	if s == "" {
		return out, nil
	}
	if strings.HasPrefix(s, "min ") {
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			return strings.Fields(s[start+1 : end]), nil
		}
	}
	for _, m := range strings.Split(s, " and ") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

// NestedStat returns the description of key from an iControl stats
// document: entries -> <selfLink> -> nestedStats -> entries -> key.
func NestedStat(body map[string]interface{}, key string) string {
	entries, _ := body["entries"].(map[string]interface{})
	links := make([]string, 0, len(entries))
	for link := range entries {
		links = append(links, link)
	}
	sort.Strings(links)
	for _, link := range links {
		entry, _ := entries[link].(map[string]interface{})
		nested, _ := entry["nestedStats"].(map[string]interface{})
		inner, _ := nested["entries"].(map[string]interface{})
		stat, _ := inner[key].(map[string]interface{})
		if d, ok := stat["description"].(string); ok {
			return d
		}
	}
	return ""
}

// mapValue returns a converter that translates through m, leaving unknown
// values untouched.
func mapValue(m map[string]string) func(v interface{}) interface{} {
	return func(v interface{}) interface{} {
		s, _ := v.(string)
		if mapped, ok := m[s]; ok {
			return mapped
		}
		return v
	}
}

func mapWireValue(m map[string]string) func(v interface{}) (interface{}, error) {
	return func(raw interface{}) (interface{}, error) {
		s, err := params.ToString(raw)
		if err != nil {
			return nil, err
		}
		if mapped, ok := m[s]; ok {
			return mapped, nil
		}
		return s, nil
	}
}
