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

const (
	UpdateSecretAlways   = "always"
	UpdateSecretOnCreate = "on_create"
)

func init() {
	Register(&Kind{
		Name:       "auth-radius-server",
		Collection: "/mgmt/tm/auth/radius-server",
		Required:   []string{"server"},
		Fields: []Field{
			{Logical: "server", Wire: "server", Type: TypeIP,
				Aliases: []Alias{{Name: "ip", Deprecated: true}}},
			{Logical: "port", Wire: "port", Type: TypePort},
			{Logical: "secret", Wire: "secret", WriteOnly: true, Compare: CompareSecret},
			{Logical: "update_secret", Type: TypeEnum, Option: true,
				Enum: []string{UpdateSecretAlways, UpdateSecretOnCreate}},
			{Logical: "timeout", Wire: "timeout", Type: TypeInt, Min: intPtr(1), Max: intPtr(60)},
			{Logical: "description", Wire: "description"},
		},
	})
}
