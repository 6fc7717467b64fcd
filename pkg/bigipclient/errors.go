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
	"fmt"
	"net/http"
)

// TransportError means no HTTP response was received: connection refused,
// timeout, TLS failure or a cancelled context.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unable to connect to BIG-IP (%s %s): %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError means the device answered with a body that is not JSON.
type DecodeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode BIG-IP response (status %d): %v: %s", e.StatusCode, e.Err, truncate(e.Body, 256))
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DeviceError is an HTTP error status reported by the device. Message is
// the vendor supplied message when there is one, else the raw body.
type DeviceError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *DeviceError) Error() string {
	return e.Message
}

// deviceErrorCodes are always surfaced as a DeviceError by the client.
// Other non-2xx statuses, 404 in particular, are left to the caller.
var deviceErrorCodes = map[int]bool{
	http.StatusUnauthorized:        true,
	http.StatusForbidden:           true,
	http.StatusConflict:            true,
	http.StatusInternalServerError: true,
	http.StatusNotImplemented:      true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsDeviceErrorCode reports whether status is always fatal.
func IsDeviceErrorCode(status int) bool {
	return deviceErrorCodes[status]
}

func newDeviceError(status int, body map[string]interface{}, raw []byte) *DeviceError {
	msg := ""
	if m, ok := body["message"].(string); ok {
		msg = m
	}
	if msg == "" {
		msg = string(raw)
	}
	if msg == "" {
		msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return &DeviceError{StatusCode: status, Message: msg, Body: raw}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
