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
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/tokenmanager"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

const (
	AuthBasic = "basic"
	AuthToken = "token"
)

// Config describes how to reach and authenticate against one device.
type Config struct {
	Server        string
	Port          int
	User          string
	Password      string
	Auth          string
	LoginProvider string
	UserAgent     string
	HTTPClient    *http.Client
	Tokens        *tokenmanager.SharedTokenManager
}

// RESTClient talks to the device with net/http.
type RESTClient struct {
	baseURL    string
	config     Config
	httpClient *http.Client
	tokens     *tokenmanager.SharedTokenManager
}

// BaseURL returns scheme://host[:port] for server, defaulting to https.
func BaseURL(server string, port int) string {
	if ip := net.ParseIP(server); ip != nil {
		if port > 0 {
			return "https://" + net.JoinHostPort(server, strconv.Itoa(port))
		}
		if ip.To4() == nil {
			return "https://[" + server + "]"
		}
		return "https://" + server
	}
	u, err := url.Parse(tokenmanager.FormatBigIPURL(server))
	if err != nil || u.Host == "" {
		return tokenmanager.FormatBigIPURL(server)
	}
	if port > 0 && u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	return u.Scheme + "://" + u.Host
}

// NewRESTClient returns a client for config. A nil HTTPClient uses
// http.DefaultClient; a nil token pool creates a private one.
func NewRESTClient(config Config) *RESTClient {
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	tokens := config.Tokens
	if config.Auth == AuthToken && tokens == nil {
		tokens = tokenmanager.NewSharedTokenManager(nil, 0)
	}
	return &RESTClient{
		baseURL:    BaseURL(config.Server, config.Port),
		config:     config,
		httpClient: client,
		tokens:     tokens,
	}
}

// BaseURL of the device this client talks to.
func (c *RESTClient) BaseURL() string {
	return c.baseURL
}

func (c *RESTClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *RESTClient) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *RESTClient) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *RESTClient) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	target := c.baseURL + path

	payload, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if err := c.authenticate(ctx, req); err != nil {
		return nil, err
	}

	log.Debugf("[BIGIP Client] %s %s", method, path)
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}

	resp, err := NewResponse(httpResp.StatusCode, raw)
	if err != nil {
		log.Debugf("[BIGIP Client] %s %s failed: %v", method, path, err)
		return nil, err
	}
	log.Debugf("[BIGIP Client] %s %s: %v", method, path, resp)
	return resp, nil
}

func (c *RESTClient) authenticate(ctx context.Context, req *http.Request) error {
	if c.config.Auth != AuthToken {
		req.SetBasicAuth(c.config.User, c.config.Password)
		return nil
	}
	tm, err := c.tokens.GetOrCreateTokenManager(ctx, c.baseURL, tokenmanager.Credentials{
		Username:          c.config.User,
		Password:          c.config.Password,
		LoginProviderName: c.config.LoginProvider,
	}, c.httpClient)
	if err != nil {
		return loginFailure(req, err)
	}
	token, err := tm.GetToken(ctx)
	if err != nil {
		return loginFailure(req, err)
	}
	req.Header.Set("X-F5-Auth-Token", token)
	return nil
}

func loginFailure(req *http.Request, err error) error {
	var loginErr *tokenmanager.LoginError
	if errors.As(err, &loginErr) && loginErr.StatusCode != 0 {
		return &DeviceError{
			StatusCode: loginErr.StatusCode,
			Message:    fmt.Sprintf("login to BIG-IP failed: %v", loginErr.Err),
			Body:       []byte(loginErr.Body),
		}
	}
	return &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
}

// EncodeBody marshals body unless it is already raw JSON.
func EncodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("unable to encode request body: %v", err)
	}
	return payload, nil
}
