package bigiphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/cenkalti/backoff"
)

const (
	defaultRetries    = 2
	defaultRetryDelay = time.Second
)

// APIRequest is one iControl call as the session sends it. URL is relative
// to the session host.
type APIRequest struct {
	Method      string
	URL         string
	Body        string
	ContentType string
}

// APIError is a non 2xx answer from the device.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d :: %s", e.StatusCode, string(e.Body))
}

// BigIPClient is the part of a session the handler needs
type BigIPClient interface {
	APICall(ctx context.Context, options *APIRequest) ([]byte, error)
}

// SessionConfig holds what CreateSession needs to build a session
type SessionConfig struct {
	Host       string
	User       string
	Password   string
	UserAgent  string
	HTTPClient *http.Client
	// Retries is how often a 503 is retried, RetryDelay apart
	Retries    int
	RetryDelay time.Duration
}

// Session keeps the connection settings and auth of one device. Calls
// answered with 503 Service Unavailable are retried, the device sends it
// while restjavad restarts.
type Session struct {
	Host       string
	User       string
	Password   string
	Token      string
	UserAgent  string
	Retries    int
	RetryDelay time.Duration
	client     *http.Client
}

// CreateSession returns a session sharing the REST transport's HTTP client
func CreateSession(cfg SessionConfig) *Session {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = defaultRetries
	}
	delay := cfg.RetryDelay
	if delay == 0 {
		delay = defaultRetryDelay
	}
	return &Session{
		Host:       strings.TrimSuffix(cfg.Host, "/"),
		User:       cfg.User,
		Password:   cfg.Password,
		UserAgent:  cfg.UserAgent,
		Retries:    retries,
		RetryDelay: delay,
		client:     client,
	}
}

// APICall sends options and returns the raw body. A non 2xx status is an
// *APIError carrying the body.
func (s *Session) APICall(ctx context.Context, options *APIRequest) ([]byte, error) {
	var data []byte
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.RetryDelay), uint64(s.Retries)), ctx)

	err := backoff.RetryNotify(func() error {
		var err error
		data, err = s.send(ctx, options)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, policy, func(err error, wait time.Duration) {
		log.Debugf("[BigIPHandler] %s %s: %v, retrying in %v", options.Method, options.URL, err, wait)
	})
	return data, err
}

func (s *Session) send(ctx context.Context, options *APIRequest) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, options.Method, s.Host+"/"+options.URL,
		bytes.NewReader([]byte(options.Body)))
	if err != nil {
		return nil, err
	}
	if options.ContentType != "" {
		req.Header.Set("Content-Type", options.ContentType)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	if s.Token != "" {
		req.Header.Set("X-F5-Auth-Token", s.Token)
	} else {
		req.SetBasicAuth(s.User, s.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, &APIError{StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}

// TokenFunc returns the auth token to put on the session before a call
type TokenFunc func(ctx context.Context) (string, error)

// BigIPHandler implements bigipclient.Client over a session
type BigIPHandler struct {
	Bigip   BigIPClient
	session *Session
	token   TokenFunc
}

// NewBigIPHandler wraps session. With a non-nil token the session sends
// X-F5-Auth-Token instead of basic auth.
func NewBigIPHandler(session *Session, token TokenFunc) *BigIPHandler {
	return &BigIPHandler{
		Bigip:   session,
		session: session,
		token:   token,
	}
}

func (handler *BigIPHandler) Get(ctx context.Context, path string) (*bigipclient.Response, error) {
	return handler.call(ctx, http.MethodGet, path, nil)
}

func (handler *BigIPHandler) Post(ctx context.Context, path string, body interface{}) (*bigipclient.Response, error) {
	return handler.call(ctx, http.MethodPost, path, body)
}

func (handler *BigIPHandler) Patch(ctx context.Context, path string, body interface{}) (*bigipclient.Response, error) {
	return handler.call(ctx, http.MethodPatch, path, body)
}

func (handler *BigIPHandler) Delete(ctx context.Context, path string) (*bigipclient.Response, error) {
	return handler.call(ctx, http.MethodDelete, path, nil)
}

func (handler *BigIPHandler) call(ctx context.Context, method, path string, body interface{}) (*bigipclient.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &bigipclient.TransportError{Method: method, URL: path, Err: err}
	}
	payload, err := bigipclient.EncodeBody(body)
	if err != nil {
		return nil, err
	}
	if handler.token != nil {
		token, err := handler.token(ctx)
		if err != nil {
			return nil, err
		}
		if handler.session != nil {
			handler.session.Token = token
		}
	}

	log.Debugf("[BigIPHandler] %s %s", method, path)
	data, err := handler.Bigip.APICall(ctx, &APIRequest{
		Method:      method,
		URL:         strings.TrimPrefix(path, "/"),
		Body:        string(payload),
		ContentType: "application/json",
	})
	if err != nil {
		log.Debugf("[BigIPHandler] %s %s failed: %v", method, path, err)
		return classify(method, path, data, err)
	}
	return bigipclient.NewResponse(http.StatusOK, data)
}

// deviceError is the error document iControl sends with a failure status
type deviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// classify turns a session error into the client's error types
func classify(method, path string, data []byte, err error) (*bigipclient.Response, error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return bigipclient.NewResponse(apiErr.StatusCode, apiErr.Body)
	}
	if len(data) > 0 {
		var doc deviceError
		if json.Unmarshal(data, &doc) == nil && doc.Code != 0 {
			return bigipclient.NewResponse(doc.Code, data)
		}
	}
	return nil, &bigipclient.TransportError{Method: method, URL: path, Err: err}
}
