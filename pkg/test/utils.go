/*-
 * Copyright (c) 2017,2018,2019 F5 Networks, Inc.
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

package test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
)

const (
	ImmediateFail = iota
	AsyncFail
	Timeout
	Success
)

// MockWriter records results instead of writing them to disk.
type MockWriter struct {
	FailStyle    int
	WrittenTimes int
	Sections     map[string]interface{}
	File         string
	sync.Mutex
}

func (mw *MockWriter) GetOutputFilename() string {
	// Returns the File field if one exists, otherwise returns "mock-file"
	if len(mw.File) > 0 {
		return mw.File
	} else {
		return "mock-file"
	}
}

func (mw *MockWriter) Stop() {
}

func (mw *MockWriter) SendSection(
	name string,
	obj interface{},
) (<-chan struct{}, <-chan error, error) {
	mw.Lock()
	defer mw.Unlock()

	doneCh := make(chan struct{})
	errCh := make(chan error)

	mw.WrittenTimes++

	if mw.Sections == nil {
		mw.Sections = map[string]interface{}{}
	}
	mw.Sections[name] = obj

	switch mw.FailStyle {
	case ImmediateFail:
		return nil, nil, fmt.Errorf("immediate test error")
	case AsyncFail:
		go func() {
			errCh <- fmt.Errorf("async test error")
		}()
	case Timeout:
		<-time.After(2 * time.Second)
	case Success:
		go func() {
			doneCh <- struct{}{}
		}()
	}

	return doneCh, errCh, nil
}

// Request is one call seen by MockBigIP.
type Request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// MockBigIP is an in-memory device. Objects are keyed by resource path
// without query string.
type MockBigIP struct {
	sync.Mutex
	Objects  map[string]map[string]interface{}
	Requests []Request
	// Errors are returned for "METHOD path" instead of a response
	Errors map[string]error
	// KeepOnDelete makes DELETE succeed without removing the object
	KeepOnDelete bool

	stats   map[string]*statusSequence
	rejects map[string]rejection
}

type rejection struct {
	status int
	body   map[string]interface{}
}

type statusSequence struct {
	key      string
	statuses []string
}

func NewMockBigIP() *MockBigIP {
	return &MockBigIP{
		Objects: map[string]map[string]interface{}{},
		Errors:  map[string]error{},
		stats:   map[string]*statusSequence{},
		rejects: map[string]rejection{},
	}
}

// Reject makes "METHOD path" answer with status and a device style error
// body instead of touching any object.
func (m *MockBigIP) Reject(method, path string, status int, message string) {
	m.Lock()
	defer m.Unlock()
	m.rejects[method+" "+path] = rejection{
		status: status,
		body:   map[string]interface{}{"code": status, "message": message},
	}
}

func (m *MockBigIP) rejected(method, key string) (rejection, bool) {
	rej, ok := m.rejects[method+" "+key]
	return rej, ok
}

// AddObject stores body at path, round tripped through JSON like the
// device would report it.
func (m *MockBigIP) AddObject(path string, body map[string]interface{}) {
	m.Lock()
	defer m.Unlock()
	m.Objects[path] = decode(body)
}

// SetStatuses makes GET path return a stats document whose key entry walks
// through statuses; the last one repeats.
func (m *MockBigIP) SetStatuses(path, key string, statuses ...string) {
	m.Lock()
	defer m.Unlock()
	m.stats[path] = &statusSequence{key: key, statuses: statuses}
}

// Calls returns the requests made with method.
func (m *MockBigIP) Calls(method string) []Request {
	m.Lock()
	defer m.Unlock()
	var out []Request
	for _, r := range m.Requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Mutations are every POST, PATCH and DELETE.
func (m *MockBigIP) Mutations() []Request {
	m.Lock()
	defer m.Unlock()
	var out []Request
	for _, r := range m.Requests {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

func (m *MockBigIP) record(method, path string, body interface{}) (string, error) {
	m.Lock()
	defer m.Unlock()
	var decoded map[string]interface{}
	if body != nil {
		decoded = decode(body)
	}
	m.Requests = append(m.Requests, Request{Method: method, Path: path, Body: decoded})
	if err, ok := m.Errors[method+" "+path]; ok {
		return "", err
	}
	return strings.SplitN(path, "?", 2)[0], nil
}

func (m *MockBigIP) Get(ctx context.Context, path string) (*bigipclient.Response, error) {
	key, err := m.record(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	if seq, ok := m.stats[key]; ok {
		status := seq.statuses[0]
		if len(seq.statuses) > 1 {
			seq.statuses = seq.statuses[1:]
		}
		return respond(http.StatusOK, StatsBody(key, seq.key, status))
	}
	if obj, ok := m.Objects[key]; ok {
		return respond(http.StatusOK, obj)
	}
	return notFound(key)
}

func (m *MockBigIP) Post(ctx context.Context, path string, body interface{}) (*bigipclient.Response, error) {
	key, err := m.record(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	if rej, ok := m.rejected(http.MethodPost, key); ok {
		return respond(rej.status, rej.body)
	}
	obj := decode(body)
	if _, ok := obj["command"]; ok {
		return respond(http.StatusOK, obj)
	}
	name, _ := obj["name"].(string)
	target := key + "/" + name
	if partition, ok := obj["partition"].(string); ok && partition != "" {
		target = key + "/~" + partition + "~" + name
	}
	if _, exists := m.Objects[target]; exists {
		return respond(http.StatusConflict, map[string]interface{}{
			"code":    409,
			"message": fmt.Sprintf("01020066:3: The requested object (%s) already exists.", name),
		})
	}
	m.Objects[target] = obj
	return respond(http.StatusOK, obj)
}

func (m *MockBigIP) Patch(ctx context.Context, path string, body interface{}) (*bigipclient.Response, error) {
	key, err := m.record(http.MethodPatch, path, body)
	if err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	if rej, ok := m.rejected(http.MethodPatch, key); ok {
		return respond(rej.status, rej.body)
	}
	obj, ok := m.Objects[key]
	if !ok {
		return notFound(key)
	}
	for k, v := range decode(body) {
		obj[k] = v
	}
	return respond(http.StatusOK, obj)
}

func (m *MockBigIP) Delete(ctx context.Context, path string) (*bigipclient.Response, error) {
	key, err := m.record(http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	m.Lock()
	defer m.Unlock()
	if rej, ok := m.rejected(http.MethodDelete, key); ok {
		return respond(rej.status, rej.body)
	}
	if _, ok := m.Objects[key]; !ok {
		return notFound(key)
	}
	if !m.KeepOnDelete {
		delete(m.Objects, key)
	}
	return bigipclient.NewResponse(http.StatusOK, nil)
}

// StatsBody builds an iControl stats document with one entry.
func StatsBody(path, key, description string) map[string]interface{} {
	return map[string]interface{}{
		"kind": "tm:stats",
		"entries": map[string]interface{}{
			"https://localhost" + path + "/0": map[string]interface{}{
				"nestedStats": map[string]interface{}{
					"entries": map[string]interface{}{
						key: map[string]interface{}{"description": description},
					},
				},
			},
		},
	}
}

func respond(status int, body map[string]interface{}) (*bigipclient.Response, error) {
	raw, err := bigipclient.EncodeBody(body)
	if err != nil {
		return nil, err
	}
	return bigipclient.NewResponse(status, raw)
}

func notFound(path string) (*bigipclient.Response, error) {
	return respond(http.StatusNotFound, map[string]interface{}{
		"code":    404,
		"message": fmt.Sprintf("01020036:3: The requested object (%s) was not found.", path),
	})
}

// decode gives body the shape the device would send back, numbers as
// float64 included.
func decode(body interface{}) map[string]interface{} {
	raw, err := bigipclient.EncodeBody(body)
	if err != nil {
		return map[string]interface{}{}
	}
	resp, err := bigipclient.NewResponse(http.StatusOK, raw)
	if err != nil {
		return map[string]interface{}{}
	}
	return resp.Body
}
