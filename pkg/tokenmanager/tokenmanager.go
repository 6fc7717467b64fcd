package tokenmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/cenkalti/backoff"
)

const (
	// BIGIP login url
	BIGIPLoginURL = "/mgmt/shared/authn/login"
	BIGIPTokenURL = "/mgmt/shared/authz/tokens/"

	DefaultLoginProvider = "tmos"
	DefaultRetryInterval = 2 * time.Second
	DefaultMaxRetries    = 3
)

type TokenManagerInterface interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SyncToken(ctx context.Context) error
	SyncTokenWithoutRetry(ctx context.Context) (bool, error)
	SetToken(token string, expirationMicros int64)
	Start(stopCh chan struct{}, duration time.Duration)
}

// TokenManager acquires an auth token once and hands it out until it
// is about to expire.
type TokenManager struct {
	mu              sync.Mutex
	Token           string
	tokenExpiry     time.Time
	tokenRefreshURL string
	ServerURL       string
	credentials     Credentials
	httpClient      *http.Client
	RetryInterval   time.Duration
	MaxRetries      uint64
}

// Credentials represent the username and password used for authentication.
type Credentials struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	LoginProviderName string `json:"loginProviderName,omitempty"`
}

// TokenInfo is the token object as BIGIP reports it.
type TokenInfo struct {
	Token            string    `json:"token"`
	ExpirationMicros int64     `json:"expirationMicros"`
	LastUse          int64     `json:"lastUse"`
	Timeout          int       `json:"timeout"`
	UserReference    Reference `json:"userReference"`
}

// TokenResponse represents the login response received from the BIGIP.
type TokenResponse struct {
	Token TokenInfo `json:"token"`
}

// Reference represents a reference to a resource.
type Reference struct {
	Link string `json:"link"`
}

// LoginError is returned when the device refuses or cannot be reached
// for a token. StatusCode is zero when no response was received.
type LoginError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *LoginError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("unable to establish connection with BIGIP: %v", e.Err)
	}
	return fmt.Sprintf("%v, status code: %d, response: %s", e.Err, e.StatusCode, e.Body)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// NewTokenManager creates a new instance of TokenManager.
func NewTokenManager(serverURL string, credentials Credentials, httpClient *http.Client) *TokenManager {
	if credentials.LoginProviderName == "" {
		credentials.LoginProviderName = DefaultLoginProvider
	}
	return &TokenManager{
		ServerURL:     serverURL,
		credentials:   credentials,
		httpClient:    httpClient,
		RetryInterval: DefaultRetryInterval,
		MaxRetries:    DefaultMaxRetries,
	}
}

// GetToken returns the saved token, logging in first when there is none
// or it is about to expire.
func (tm *TokenManager) GetToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	token, expiry := tm.Token, tm.tokenExpiry
	tm.mu.Unlock()

	if token != "" && time.Now().Before(expiry) {
		return token, nil
	}
	if err := tm.RefreshToken(ctx); err != nil {
		log.Errorf("[Token Manager] Failed to refresh Token from BIGIP: %v", err)
		return "", err
	}
	log.Debugf("[Token Manager] Successfully refreshed Token from BIGIP")

	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.Token, nil
}

// SetToken safely sets the Token in the TokenManager.
func (tm *TokenManager) SetToken(token string, expirationMicros int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.Token = token
	// refresh slightly before the device expires it
	expirationTime := time.Unix(0, expirationMicros*1000)
	tm.tokenExpiry = expirationTime.Add(-30 * time.Second)
	tm.tokenRefreshURL = BIGIPTokenURL + token
}

// RefreshToken extends the lifetime of the current Token, falling back to
// a fresh login when there is none or the device rejects the refresh.
func (tm *TokenManager) RefreshToken(ctx context.Context) error {
	tm.mu.Lock()
	token, refreshURL := tm.Token, tm.tokenRefreshURL
	tm.mu.Unlock()

	if token == "" || refreshURL == "" {
		return tm.SyncToken(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, tm.ServerURL+refreshURL,
		bytes.NewBufferString(`{"timeout":1200}`))
	if err != nil {
		return fmt.Errorf("error creating Token refresh request: %v", err)
	}
	req.Header.Add("X-F5-Auth-Token", token)
	req.Header.Add("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return &LoginError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return tm.SyncToken(ctx)
	}

	var info TokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("error parsing Token response: %v", err)
	}
	tm.SetToken(token, info.ExpirationMicros)
	return nil
}

// SyncTokenWithoutRetry performs one login. retry reports whether the
// failure is worth another attempt.
func (tm *TokenManager) SyncTokenWithoutRetry(ctx context.Context) (retry bool, err error) {
	payload, err := json.Marshal(tm.credentials)
	if err != nil {
		return false, fmt.Errorf("marshaling failed for credentials: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.ServerURL+BIGIPLoginURL, bytes.NewBuffer(payload))
	if err != nil {
		return false, fmt.Errorf("error creating login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return false, &LoginError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("unable to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return false, &LoginError{StatusCode: resp.StatusCode, Body: string(body),
				Err: fmt.Errorf("unauthorized to fetch Token from BIGIP, please check the credentials")}
		case http.StatusServiceUnavailable:
			return true, &LoginError{StatusCode: resp.StatusCode, Body: string(body),
				Err: fmt.Errorf("failed to get Token due to service unavailability")}
		case http.StatusNotFound, http.StatusMovedPermanently:
			return false, &LoginError{StatusCode: resp.StatusCode, Body: string(body),
				Err: fmt.Errorf("requested page/api not found")}
		default:
			return resp.StatusCode >= 500, &LoginError{StatusCode: resp.StatusCode, Body: string(body),
				Err: fmt.Errorf("failed to get Token")}
		}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return false, fmt.Errorf("error parsing Token response: %v", err)
	}
	if tokenResp.Token.Token == "" {
		return false, fmt.Errorf("login response from BIGIP carried no token")
	}

	tm.SetToken(tokenResp.Token.Token, tokenResp.Token.ExpirationMicros)
	log.Debugf("[Token Manager] Successfully fetched Token from BIGIP")
	return false, nil
}

// SyncToken logs in, retrying a bounded number of times on errors the
// device reports as transient.
func (tm *TokenManager) SyncToken(ctx context.Context) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(tm.RetryInterval), tm.MaxRetries), ctx)

	return backoff.RetryNotify(func() error {
		retry, err := tm.SyncTokenWithoutRetry(ctx)
		if err != nil && !retry {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		log.Debugf("[Token Manager] Retrying to fetch Token in %v: %v", wait, err)
	})
}

// Start keeps the token fresh for long running processes until stopCh is closed.
func (tm *TokenManager) Start(stopCh chan struct{}, duration time.Duration) {
	interval := duration - 60*time.Second
	if interval <= 0 {
		interval = duration
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := tm.RefreshToken(context.Background()); err != nil {
				log.Warningf("[Token Manager] Periodic token refresh failed: %v", err)
			}
		case <-stopCh:
			log.Debug("[Token Manager] Stopping Token synchronization")
			return
		}
	}
}
