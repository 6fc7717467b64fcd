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

package resource

const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// FieldType selects the accessor used to parse a parameter.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeBool
	TypePort
	TypeIP
	TypeEnum
	TypeStringList
	TypeObjectList
)

// Names of the built-in comparators a Field may ask for.
const (
	CompareDefault       = ""
	CompareUnordered     = "unordered"
	CompareObjectsByName = "objects-by-name"
	CompareSecret        = "secret"
)

type (
	// Identity of a resource on the device. Immutable once created.
	Identity struct {
		Name      string `json:"name"`
		Partition string `json:"partition,omitempty"`
	}

	// Alias is an alternative parameter name for a Field.
	Alias struct {
		Name       string
		Deprecated bool
	}

	// Field maps one logical parameter onto the device representation.
	Field struct {
		Logical string
		// Wire is the iControl REST property; empty for option fields
		Wire    string
		Type    FieldType
		Aliases []Alias
		Enum    []string
		Min     *int
		Max     *int
		// Option fields steer the reconciler and never reach the device
		Option bool
		// CreateOnly fields cannot be changed after creation
		CreateOnly bool
		// WriteOnly fields are never reported back by the device
		WriteOnly bool
		// Qualify prefixes bare names in the value with the partition
		Qualify bool
		Compare string
		// Coerce reshapes a parsed value into its canonical logical form
		Coerce func(v interface{}) (interface{}, error)
		// ToWire converts a logical value into its wire value
		ToWire func(v interface{}) interface{}
		// FromWire converts a wire value into a logical value
		FromWire func(v interface{}) (interface{}, error)
		// Read extracts the wire value from a response body
		Read func(body map[string]interface{}) (interface{}, bool)
	}

	// Settle describes how to wait for the device after a change.
	Settle struct {
		Path    func(id Identity) string
		Status  func(body map[string]interface{}) string
		Success []string
		Failure []string
		// TolerateTransport keeps polling through connection errors while
		// the device restarts services
		TolerateTransport bool
	}

	// Action describes the command an action kind runs instead of a CRUD call.
	Action struct {
		Path    string
		Command func(id Identity, values map[string]interface{}) interface{}
	}

	// Kind is the static description of one resource type.
	Kind struct {
		Name       string
		Collection string
		Fields     []Field
		// Required on create
		Required []string
		// NoPartition kinds are addressed by bare name
		NoPartition bool
		// AllowedNames restricts resource names when set
		AllowedNames []string
		// Expand asks for subcollections when reading
		Expand bool
		// Singleton kinds always exist; present means update
		Singleton bool
		// AbsentValues turns state=absent into an update to these values
		AbsentValues map[string]interface{}
		Settle       *Settle
		// Action kinds read Status and run Action when it is not successful
		Status *Settle
		Action *Action
		// Validate runs cross field checks on parsed values
		Validate func(values map[string]interface{}, state string) error
	}
)
