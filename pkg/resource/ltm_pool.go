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

var poolLBMethods = []string{
	"round-robin",
	"ratio-member",
	"least-connections-member",
	"observed-member",
	"predictive-member",
	"ratio-node",
	"least-connections-node",
	"fastest-node",
	"observed-node",
	"predictive-node",
	"dynamic-ratio-node",
	"fastest-app-response",
	"least-sessions",
	"dynamic-ratio-member",
	"weighted-least-connections-member",
	"weighted-least-connections-node",
	"ratio-session",
	"ratio-least-connections-member",
	"ratio-least-connections-node",
}

func init() {
	Register(&Kind{
		Name:       "ltm-pool",
		Collection: "/mgmt/tm/ltm/pool",
		Fields: []Field{
			{Logical: "lb_method", Wire: "loadBalancingMode", Type: TypeEnum, Enum: poolLBMethods},
			{Logical: "monitors", Wire: "monitor", Type: TypeStringList, Qualify: true,
				Compare: CompareUnordered, ToWire: JoinMonitors, FromWire: SplitMonitors},
			{Logical: "description", Wire: "description"},
			{Logical: "slow_ramp_time", Wire: "slowRampTime", Type: TypeInt},
			{Logical: "service_down_action", Wire: "serviceDownAction", Type: TypeEnum,
				Enum: []string{"none", "reset", "drop", "reselect"}},
			{Logical: "min_up_members", Wire: "minUpMembers", Type: TypeInt},
		},
	})
}
