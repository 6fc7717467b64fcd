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

// ProvisionModules are the modules BIG-IP can provision.
var ProvisionModules = []string{
	"afm", "am", "apm", "asm", "avr", "cgnat", "fps", "gtm",
	"ilx", "lc", "ltm", "pem", "sslo", "swg", "urldb",
}

func init() {
	Register(&Kind{
		Name:         "sys-provision",
		Collection:   "/mgmt/tm/sys/provision",
		NoPartition:  true,
		Singleton:    true,
		AllowedNames: ProvisionModules,
		AbsentValues: map[string]interface{}{"level": "none"},
		Fields: []Field{
			{Logical: "level", Wire: "level", Type: TypeEnum,
				Enum: []string{"none", "minimum", "nominal", "dedicated"}},
		},
		// mcpd restarts while modules are (de)provisioned
		Settle: &Settle{
			Path:              func(Identity) string { return "/mgmt/tm/sys/mcp-state/stats" },
			Status:            func(body map[string]interface{}) string { return NestedStat(body, "phase") },
			Success:           []string{"running"},
			TolerateTransport: true,
		},
	})
}
