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
// Package reconciler drives one resource from its current device state to
// the desired state through a fixed state machine.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/pollers"
	bigIPPrometheus "github.com/F5Networks/f5-bigip-reconciler/pkg/prometheus"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/resource"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/state"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

// Manager reconciles requests against one device.
type Manager struct {
	client bigipclient.Client
	reader *state.Reader
	differ *state.Differ
	opts   Options
}

func NewManager(client bigipclient.Client, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = pollers.DefaultInterval
	}
	if opts.PollRetries <= 0 {
		opts.PollRetries = pollers.DefaultRetries
	}
	return &Manager{
		client: client,
		reader: state.NewReader(client),
		differ: state.NewDiffer(),
		opts:   opts,
	}
}

// Differ exposes the differ so callers can register comparators.
func (m *Manager) Differ() *state.Differ {
	return m.differ
}

// ReconcileAll handles requests in order and stops at the first failure.
// The results gathered so far are returned along with the error.
func (m *Manager) ReconcileAll(ctx context.Context, reqs []Request) (*Summary, error) {
	summary := &Summary{Results: []*Result{}}
	for _, req := range reqs {
		res, err := m.Reconcile(ctx, req)
		if err != nil {
			return summary, err
		}
		summary.Results = append(summary.Results, res)
		summary.Changed = summary.Changed || res.Changed
	}
	return summary, nil
}

// Reconcile validates req and runs it through the state machine.
func (m *Manager) Reconcile(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	kind, err := resource.Lookup(req.Kind)
	if err != nil {
		return nil, err
	}
	desiredState := req.State
	if desiredState == "" {
		desiredState = resource.StatePresent
	}
	if !sets.NewString(resource.StatePresent, resource.StateAbsent).Has(desiredState) {
		return nil, params.Invalid("state", "value %q must be one of: %s, %s",
			desiredState, resource.StatePresent, resource.StateAbsent)
	}
	id := kind.Identity(req.Name, req.Partition)
	if err := kind.CheckIdentity(id); err != nil {
		return nil, err
	}
	values, warnings, err := kind.Parse(id, desiredState, params.New(req.Params))
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Warningf("[Reconciler] %s %s: %s", kind.Name, id, w)
	}
	want, err := state.NewDesiredState(kind, id, desiredState, values)
	if err != nil {
		return nil, err
	}

	r := m.newRun(want)
	r.result.Warnings = warnings
	err = r.execute(ctx)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	bigIPPrometheus.Reconciliations.WithLabelValues(kind.Name, r.result.Action, outcome).Inc()
	bigIPPrometheus.ReconcileDuration.WithLabelValues(kind.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Errorf("[Reconciler] %s %s failed in state %s: %v", kind.Name, id, r.failedIn, err)
		return nil, err
	}
	log.Infof("[Reconciler] %s %s: action=%s changed=%v", kind.Name, id, r.result.Action, r.result.Changed)
	return r.result, nil
}

// run is a single pass of the state machine for one resource.
type run struct {
	*Manager
	kind     *resource.Kind
	want     *state.DesiredState
	fsm      *fsm.FSM
	result   *Result
	failedIn string
}

func (m *Manager) newRun(want *state.DesiredState) *run {
	r := &run{
		Manager: m,
		kind:    want.Kind,
		want:    want,
		result: &Result{
			Kind:      want.Kind.Name,
			Name:      want.Identity.Name,
			Partition: want.Identity.Partition,
			Action:    ActionNone,
			CheckMode: m.opts.CheckMode,
		},
	}
	r.fsm = fsm.NewFSM(
		StateUnknown,
		fsm.Events{
			{Name: EventCheck, Src: []string{StateUnknown}, Dst: StateExistsCheck},
			{Name: EventCreate, Src: []string{StateExistsCheck}, Dst: StateCreate},
			{Name: EventUpdate, Src: []string{StateExistsCheck}, Dst: StateUpdate},
			{Name: EventDelete, Src: []string{StateExistsCheck}, Dst: StateDelete},
			{Name: EventNoop, Src: []string{StateExistsCheck, StateUpdate}, Dst: StateNoop},
			{Name: EventPoll, Src: []string{StateCreate, StateUpdate}, Dst: StatePolling},
			{Name: EventFinish, Src: []string{StateCreate, StateUpdate, StateDelete, StateNoop, StatePolling}, Dst: StateDone},
			{Name: EventFail, Src: []string{StateUnknown, StateExistsCheck, StateCreate, StateUpdate,
				StateDelete, StateNoop, StatePolling}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("[Reconciler] %s %s: %s -> %s", r.kind.Name, r.want.Identity, e.Src, e.Dst)
			},
		},
	)
	return r
}

// Current is the state the machine is in.
func (r *run) Current() string {
	return r.fsm.Current()
}

// fire moves the machine on. A refused transition fails the run.
func (r *run) fire(ctx context.Context, event string) error {
	if err := r.fsm.Event(ctx, event); err != nil {
		return r.fail(ctx, fmt.Errorf("invalid transition %q from state %q: %v", event, r.fsm.Current(), err))
	}
	return nil
}

// mutate checks the answer to a POST or PATCH. Statuses the client leaves
// to its caller, such as a 400 configuration error, fail the run.
func (r *run) mutate(ctx context.Context, resp *bigipclient.Response, err error) error {
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		return r.fail(ctx, err)
	}
	return nil
}

// fail records where the run stopped and moves to failed. err is returned
// unchanged.
func (r *run) fail(ctx context.Context, err error) error {
	r.failedIn = r.fsm.Current()
	if fErr := r.fsm.Event(ctx, EventFail); fErr != nil {
		log.Errorf("[Reconciler] unable to enter failed state: %v", fErr)
	}
	return err
}

func (r *run) verificationError(step string, err error) error {
	return &ReconciliationError{Step: step, Kind: r.kind.Name, Identity: r.want.Identity, Err: err}
}

func (r *run) execute(ctx context.Context) error {
	if err := r.fire(ctx, EventCheck); err != nil {
		return err
	}
	if r.kind.IsAction() {
		return r.action(ctx)
	}

	have, err := r.reader.Read(ctx, r.kind, r.want.Identity)
	var notFound *state.NotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return r.fail(ctx, err)
	}

	switch {
	case notFound != nil && r.kind.Singleton:
		return r.fail(ctx, r.verificationError(StateExistsCheck,
			fmt.Errorf("%s cannot be created, the device does not know it", r.want.Identity)))
	case r.want.State == resource.StateAbsent && r.kind.AbsentValues != nil:
		absent, err := state.NewDesiredState(r.kind, r.want.Identity, resource.StateAbsent, r.kind.AbsentValues)
		if err != nil {
			return r.fail(ctx, err)
		}
		r.want = absent
		return r.update(ctx, have)
	case r.want.State == resource.StateAbsent && notFound != nil:
		return r.noop(ctx)
	case r.want.State == resource.StateAbsent:
		return r.delete(ctx)
	case notFound != nil:
		return r.create(ctx)
	default:
		return r.update(ctx, have)
	}
}

func (r *run) noop(ctx context.Context) error {
	if err := r.fire(ctx, EventNoop); err != nil {
		return err
	}
	return r.fire(ctx, EventFinish)
}

func (r *run) create(ctx context.Context) error {
	if err := r.fire(ctx, EventCreate); err != nil {
		return err
	}
	r.result.Action = ActionCreate
	if missing := r.kind.MissingRequired(r.want.Values()); len(missing) > 0 {
		return r.fail(ctx, params.Invalid("", "missing required parameters to create %s %s: %s",
			r.kind.Name, r.want.Identity, strings.Join(missing, ", ")))
	}

	cs := state.Full(r.want)
	r.result.Changed = true
	r.result.Values = r.mask(cs).Values()
	if r.opts.CheckMode {
		return r.fire(ctx, EventFinish)
	}

	body := r.kind.CreatePayload(r.want.Identity, cs.Values())
	resp, err := r.client.Post(ctx, r.kind.Collection, body)
	if err := r.mutate(ctx, resp, err); err != nil {
		return err
	}
	return r.settle(ctx)
}

func (r *run) update(ctx context.Context, have *state.CurrentState) error {
	if err := r.fire(ctx, EventUpdate); err != nil {
		return err
	}
	if conflicts := r.differ.CreateOnlyConflicts(r.want, have); len(conflicts) > 0 {
		return r.fail(ctx, params.Invalid(conflicts[0], "cannot be changed once %s %s exists",
			r.kind.Name, r.want.Identity))
	}

	cs := r.differ.Diff(r.want, have)
	if cs.Empty() {
		return r.noop(ctx)
	}
	r.result.Action = ActionUpdate
	r.result.Changed = true
	r.result.Diff = r.mask(cs)
	r.result.Values = r.result.Diff.Values()
	if r.opts.CheckMode {
		return r.fire(ctx, EventFinish)
	}

	body := r.kind.WirePayload(cs.Values())
	resp, err := r.client.Patch(ctx, r.kind.ResourcePath(r.want.Identity), body)
	if err := r.mutate(ctx, resp, err); err != nil {
		return err
	}
	return r.settle(ctx)
}

func (r *run) delete(ctx context.Context) error {
	if err := r.fire(ctx, EventDelete); err != nil {
		return err
	}
	r.result.Action = ActionDelete
	r.result.Changed = true
	if r.opts.CheckMode {
		return r.fire(ctx, EventFinish)
	}

	path := r.kind.ResourcePath(r.want.Identity)
	resp, err := r.client.Delete(ctx, path)
	if err != nil {
		return r.fail(ctx, err)
	}
	if err := resp.Err(); err != nil && !resp.IsNotFound() {
		return r.fail(ctx, err)
	}
	exists, err := r.reader.Exists(ctx, r.kind, r.want.Identity)
	if err != nil {
		return r.fail(ctx, err)
	}
	if exists {
		return r.fail(ctx, r.verificationError(StateDelete,
			fmt.Errorf("resource still exists after delete")))
	}
	return r.fire(ctx, EventFinish)
}

// action handles kinds that run a command when their status is not yet
// successful.
func (r *run) action(ctx context.Context) error {
	status, err := r.reader.ReadStatus(ctx, r.kind.Status, r.want.Identity)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.result.Status = status
	if sets.NewString(r.kind.Status.Success...).Has(status) {
		return r.noop(ctx)
	}

	if err := r.fire(ctx, EventUpdate); err != nil {
		return err
	}
	r.result.Action = ActionRun
	r.result.Changed = true
	if r.opts.CheckMode {
		return r.fire(ctx, EventFinish)
	}

	cmd := r.kind.Action.Command(r.want.Identity, r.want.Values())
	r.result.Values = map[string]interface{}{"command": cmd}
	log.Infof("[Reconciler] %s %s: status %q, running %v", r.kind.Name, r.want.Identity, status, cmd)
	resp, err := r.client.Post(ctx, r.kind.Action.Path, cmd)
	if err := r.mutate(ctx, resp, err); err != nil {
		return err
	}
	return r.settle(ctx)
}

// settle polls when the kind asks for it and finishes otherwise.
func (r *run) settle(ctx context.Context) error {
	spec := r.kind.Settle
	if spec == nil {
		return r.fire(ctx, EventFinish)
	}
	if err := r.fire(ctx, EventPoll); err != nil {
		return err
	}

	settings := pollers.Settings{
		Name:     fmt.Sprintf("%s %s", r.kind.Name, r.want.Identity),
		Interval: r.opts.PollInterval,
		Retries:  r.opts.PollRetries,
		Success:  spec.Success,
		Failure:  spec.Failure,
	}
	if spec.TolerateTransport {
		settings.Tolerate = restarting
	}
	read := func(ctx context.Context) (string, error) {
		return r.reader.ReadStatus(ctx, spec, r.want.Identity)
	}

	out, err := pollers.PollStatus(ctx, read, settings)
	result := "success"
	if err != nil {
		result = "failure"
	}
	bigIPPrometheus.PollIterations.WithLabelValues(r.kind.Name, result).Observe(float64(out.Iterations))
	r.result.Status = out.Status
	if err != nil {
		return r.fail(ctx, r.verificationError(StatePolling, err))
	}
	return r.fire(ctx, EventFinish)
}

// restarting matches the errors a device gives while its services restart.
func restarting(err error) bool {
	var tErr *bigipclient.TransportError
	if errors.As(err, &tErr) {
		return true
	}
	var dErr *bigipclient.DeviceError
	if errors.As(err, &dErr) {
		return dErr.StatusCode == 502 || dErr.StatusCode == 503 || dErr.StatusCode == 504
	}
	return false
}

// mask hides secret values from results.
func (r *run) mask(cs state.ChangeSet) state.ChangeSet {
	out := make(state.ChangeSet, len(cs))
	for i, c := range cs {
		out[i] = c
		if f, ok := r.kind.Field(c.Field); ok && f.Compare == resource.CompareSecret {
			out[i].Value = maskedValue
			out[i].Old = nil
		}
	}
	return out
}
