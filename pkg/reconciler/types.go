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
package reconciler

import (
	"fmt"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/resource"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/state"
)

// FSM states
const (
	StateUnknown     = "unknown"
	StateExistsCheck = "exists_check"
	StateCreate      = "create"
	StateUpdate      = "update"
	StateDelete      = "delete"
	StateNoop        = "noop"
	StatePolling     = "polling"
	StateDone        = "done"
	StateFailed      = "failed"
)

// FSM events
const (
	EventCheck  = "check"
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
	EventNoop   = "noop"
	EventPoll   = "poll"
	EventFinish = "finish"
	EventFail   = "fail"
)

// Actions reported in a Result
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionRun    = "run"
	ActionNone   = "none"
)

const maskedValue = "********"

type (
	// Request is one resource as the user described it.
	Request struct {
		Kind      string                 `json:"kind" yaml:"kind"`
		Name      string                 `json:"name" yaml:"name"`
		Partition string                 `json:"partition,omitempty" yaml:"partition"`
		State     string                 `json:"state,omitempty" yaml:"state"`
		Params    map[string]interface{} `json:"params,omitempty" yaml:"params"`
	}

	// Options tune a Manager.
	Options struct {
		CheckMode    bool
		PollInterval time.Duration
		PollRetries  int
	}

	// Result summarises one reconciliation.
	Result struct {
		Kind      string                 `json:"kind"`
		Name      string                 `json:"name"`
		Partition string                 `json:"partition,omitempty"`
		Changed   bool                   `json:"changed"`
		Action    string                 `json:"action"`
		Values    map[string]interface{} `json:"values,omitempty"`
		Diff      state.ChangeSet        `json:"diff,omitempty"`
		Status    string                 `json:"status,omitempty"`
		Warnings  []string               `json:"warnings,omitempty"`
		CheckMode bool                   `json:"check_mode,omitempty"`
	}

	// Summary is the outcome of a pass over several requests.
	Summary struct {
		Changed bool      `json:"changed"`
		Results []*Result `json:"results"`
	}

	// ReconciliationError is a failed post-mutation verification step.
	ReconciliationError struct {
		Step     string
		Kind     string
		Identity resource.Identity
		Err      error
	}
)

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s %s: %s step failed: %v", e.Kind, e.Identity, e.Step, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
