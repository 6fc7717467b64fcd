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
	"sort"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
)

func init() {
	Register(&Kind{
		Name:       "net-vlan",
		Collection: "/mgmt/tm/net/vlan",
		Expand:     true,
		Fields: []Field{
			{Logical: "tag", Wire: "tag", Type: TypeInt, Min: intPtr(1), Max: intPtr(4094)},
			{Logical: "mtu", Wire: "mtu", Type: TypeInt, Min: intPtr(576), Max: intPtr(9198)},
			{Logical: "description", Wire: "description"},
			{Logical: "interfaces", Wire: "interfaces", Type: TypeObjectList,
				Compare: CompareObjectsByName,
				Coerce:  vlanInterfaces, ToWire: vlanInterfacesToWire,
				FromWire: vlanInterfacesFromWire, Read: vlanInterfacesRead},
		},
	})
}

// vlanInterfaces canonicalises user input to [{name, tagged}] sorted by name.
func vlanInterfaces(v interface{}) (interface{}, error) {
	in, err := params.ToObjectList(v)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(in))
	seen := map[string]bool{}
	for _, obj := range in {
		name, err := params.ToString(obj["name"])
		if err != nil || name == "" {
			return nil, fmt.Errorf("every interface needs a name")
		}
		if seen[name] {
			return nil, fmt.Errorf("interface %q is listed more than once", name)
		}
		seen[name] = true
		tagged := false
		if raw, ok := obj["tagged"]; ok && raw != nil {
			if tagged, err = params.ToBool(raw); err != nil {
				return nil, fmt.Errorf("interface %q: %v", name, err)
			}
		}
		out = append(out, map[string]interface{}{"name": name, "tagged": tagged})
	}
	sortByName(out)
	return out, nil
}

func vlanInterfacesToWire(v interface{}) interface{} {
	in, _ := v.([]map[string]interface{})
	out := make([]map[string]interface{}, 0, len(in))
	for _, obj := range in {
		item := map[string]interface{}{"name": obj["name"]}
		if tagged, _ := obj["tagged"].(bool); tagged {
			item["tagged"] = true
		} else {
			item["untagged"] = true
		}
		out = append(out, item)
	}
	return out
}

func vlanInterfacesFromWire(raw interface{}) (interface{}, error) {
	in, err := params.ToObjectList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(in))
	for _, obj := range in {
		name, _ := obj["name"].(string)
		tagged, _ := obj["tagged"].(bool)
		out = append(out, map[string]interface{}{"name": name, "tagged": tagged})
	}
	sortByName(out)
	return out, nil
}

// vlanInterfacesRead takes the expanded subcollection; a VLAN without
// interfaces has no items at all.
func vlanInterfacesRead(body map[string]interface{}) (interface{}, bool) {
	ref, ok := body["interfacesReference"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	items, ok := ref["items"]
	if !ok {
		return []interface{}{}, true
	}
	return items, true
}

func sortByName(l []map[string]interface{}) {
	sort.SliceStable(l, func(i, j int) bool {
		a, _ := l[i]["name"].(string)
		b, _ := l[j]["name"].(string)
		return a < b
	})
}
