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

	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
)

const (
	SyncToGroup   = "to-group"
	SyncFromGroup = "from-group"

	SyncStatusInSync = "In Sync"
)

var syncStatus = &Settle{
	Path:    func(Identity) string { return "/mgmt/tm/cm/sync-status" },
	Status:  func(body map[string]interface{}) string { return NestedStat(body, "status") },
	Success: []string{SyncStatusInSync},
	Failure: []string{"FAILURE", "FAILED", "Disconnected", "Sync Failure"},
}

func init() {
	Register(&Kind{
		Name:        "cm-config-sync",
		Collection:  "/mgmt/tm/cm/sync-status",
		NoPartition: true,
		Fields: []Field{
			{Logical: "device_group", Type: TypeString, Option: true},
			{Logical: "direction", Type: TypeEnum, Option: true,
				Enum: []string{SyncToGroup, SyncFromGroup}},
			{Logical: "overwrite_config", Type: TypeBool, Option: true},
		},
		Status: syncStatus,
		Settle: syncStatus,
		Action: &Action{
			Path:    "/mgmt/tm/cm",
			Command: configSyncCommand,
		},
		Validate: func(values map[string]interface{}, state string) error {
			if state == StateAbsent {
				return params.Invalid("state", "state %q is not supported by %s", state, "cm-config-sync")
			}
			return nil
		},
	})
}

// configSyncCommand builds the tmsh "run cm config-sync" request. The
// resource name is the device group unless device_group is given.
func configSyncCommand(id Identity, values map[string]interface{}) interface{} {
	group := id.Name
	if dg, ok := values["device_group"].(string); ok && dg != "" {
		group = dg
	}
	direction := SyncToGroup
	if d, ok := values["direction"].(string); ok && d != "" {
		direction = d
	}
	args := fmt.Sprintf("config-sync %s %s", direction, group)
	if force, _ := values["overwrite_config"].(bool); force {
		args += " force-full-load-push"
	}
	return map[string]interface{}{
		"command":     "run",
		"utilCmdArgs": args,
	}
}
