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

package bigipclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Client issues one authenticated request per call against the iControl
// REST API. path is absolute, e.g. /mgmt/tm/ltm/node/~Common~foo.
type Client interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, body interface{}) (*Response, error)
	Patch(ctx context.Context, path string, body interface{}) (*Response, error)
	Delete(ctx context.Context, path string) (*Response, error)
}

// Response is a decoded device answer. Body is empty, never nil, when the
// device sent no content.
type Response struct {
	StatusCode int
	Body       map[string]interface{}
	Raw        []byte
}

// NewResponse decodes raw and applies the DeviceError policy shared by
// every Client implementation.
func NewResponse(status int, raw []byte) (*Response, error) {
	resp := &Response{StatusCode: status, Body: map[string]interface{}{}, Raw: raw}

	if len(bytes.TrimSpace(raw)) > 0 {
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			if IsDeviceErrorCode(status) {
				return nil, newDeviceError(status, nil, raw)
			}
			return nil, &DecodeError{StatusCode: status, Body: string(raw), Err: err}
		}
		switch v := decoded.(type) {
		case map[string]interface{}:
			resp.Body = v
		default:
			resp.Body = map[string]interface{}{"items": v}
		}
	}

	if IsDeviceErrorCode(status) {
		return nil, newDeviceError(status, resp.Body, raw)
	}
	if code := resp.Code(); IsDeviceErrorCode(code) {
		return nil, newDeviceError(code, resp.Body, raw)
	}
	return resp, nil
}

// Code returns the status embedded in the body as "code", or 0.
func (r *Response) Code() int {
	switch c := r.Body["code"].(type) {
	case float64:
		return int(c)
	case int:
		return c
	case json.Number:
		n, _ := c.Int64()
		return int(n)
	}
	return 0
}

// IsNotFound reports a 404 either as the HTTP status or embedded in the body.
func (r *Response) IsNotFound() bool {
	return r.StatusCode == 404 || r.Code() == 404
}

// IsSuccess is a 2xx status without an embedded error code.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300 && r.Code() < 400
}

// Message returns the vendor message, if any.
func (r *Response) Message() string {
	m, _ := r.Body["message"].(string)
	return m
}

// Err converts any remaining failure status into a DeviceError.
func (r *Response) Err() error {
	if r.IsSuccess() {
		return nil
	}
	status := r.StatusCode
	if status < 400 {
		status = r.Code()
	}
	return newDeviceError(status, r.Body, r.Raw)
}

// String is used when logging responses at debug level.
func (r *Response) String() string {
	return fmt.Sprintf("status=%d body=%s", r.StatusCode, truncate(string(r.Raw), 512))
}
