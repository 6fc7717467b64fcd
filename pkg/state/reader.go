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
package state

import (
	"context"
	"fmt"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/resource"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

// NotFoundError tells the reconciler a resource is absent. It is a control
// flow signal and is not reported to the user.
type NotFoundError struct {
	Kind     string
	Identity resource.Identity
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s was not found", e.Kind, e.Identity)
}

// Reader fetches resources through a Client.
type Reader struct {
	client bigipclient.Client
}

func NewReader(client bigipclient.Client) *Reader {
	return &Reader{client: client}
}

// Read returns the current state, a *NotFoundError on 404, or the client
// error for any other failure.
func (r *Reader) Read(ctx context.Context, kind *resource.Kind, id resource.Identity) (*CurrentState, error) {
	resp, err := r.client.Get(ctx, kind.ReadPath(id))
	if err != nil {
		return nil, err
	}
	if resp.IsNotFound() {
		log.Debugf("[State Reader] %s %s not found", kind.Name, id)
		return nil, &NotFoundError{Kind: kind.Name, Identity: id}
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	values, err := kind.FromDevice(resp.Body)
	if err != nil {
		return nil, err
	}
	log.Debugf("[State Reader] %s %s: %v", kind.Name, id, values)
	return &CurrentState{Identity: id, Values: values, Raw: resp.Body}, nil
}

// Exists is a lighter check than Read.
func (r *Reader) Exists(ctx context.Context, kind *resource.Kind, id resource.Identity) (bool, error) {
	resp, err := r.client.Get(ctx, kind.ExistsPath(id))
	if err != nil {
		return false, err
	}
	if resp.IsNotFound() {
		return false, nil
	}
	if err := resp.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// ReadStatus fetches the status document described by s and extracts the
// status string.
func (r *Reader) ReadStatus(ctx context.Context, s *resource.Settle, id resource.Identity) (string, error) {
	path := s.Path(id)
	resp, err := r.client.Get(ctx, path)
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	status := s.Status(resp.Body)
	log.Debugf("[State Reader] %s status: %q", path, status)
	return status, nil
}
