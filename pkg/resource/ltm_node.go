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

var (
	nodeSessionToWire = map[string]string{
		"enabled":  "user-enabled",
		"disabled": "user-disabled",
	}
	nodeSessionFromWire = map[string]string{
		"user-enabled":    "enabled",
		"monitor-enabled": "enabled",
		"user-disabled":   "disabled",
	}
)

func init() {
	Register(&Kind{
		Name:       "ltm-node",
		Collection: "/mgmt/tm/ltm/node",
		Required:   []string{"address"},
		Fields: []Field{
			{Logical: "address", Wire: "address", Type: TypeIP, CreateOnly: true},
			{Logical: "description", Wire: "description"},
			{Logical: "connection_limit", Wire: "connectionLimit", Type: TypeInt},
			{Logical: "rate_limit", Wire: "rateLimit", Type: TypeInt},
			{Logical: "ratio", Wire: "ratio", Type: TypeInt, Min: intPtr(1), Max: intPtr(100)},
			{Logical: "monitors", Wire: "monitor", Type: TypeStringList, Qualify: true,
				Compare: CompareUnordered, ToWire: JoinMonitors, FromWire: SplitMonitors},
			{Logical: "availability", Wire: "session", Type: TypeEnum,
				Enum:   []string{"enabled", "disabled"},
				ToWire: mapValue(nodeSessionToWire), FromWire: mapWireValue(nodeSessionFromWire)},
		},
	})
}
