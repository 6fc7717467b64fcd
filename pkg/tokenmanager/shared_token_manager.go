package tokenmanager

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/httpclient"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

// SharedTokenManager hands out one TokenManager per BIG-IP host and user so
// that every client talking to the same device reuses a single login.
type SharedTokenManager struct {
	mu                   sync.RWMutex
	tokenManagers        map[string]*TokenManager
	clientFactory        *httpclient.HTTPClientFactory
	refreshTokenInterval time.Duration
	stopChannels         map[string]chan struct{}
}

// TokenManagerKey identifies a token manager.
type TokenManagerKey struct {
	Host     string
	Username string
}

func (k TokenManagerKey) String() string {
	return k.Username + "@" + k.Host
}

// NewSharedTokenManager returns an empty pool. A zero refreshInterval
// disables background refresh; tokens are then renewed lazily on GetToken.
func NewSharedTokenManager(factory *httpclient.HTTPClientFactory, refreshInterval time.Duration) *SharedTokenManager {
	if factory == nil {
		factory = httpclient.GetFactory()
	}
	return &SharedTokenManager{
		tokenManagers:        make(map[string]*TokenManager),
		clientFactory:        factory,
		refreshTokenInterval: refreshInterval,
		stopChannels:         make(map[string]chan struct{}),
	}
}

// SetRefreshTokenInterval applies to token managers created afterwards.
func (stm *SharedTokenManager) SetRefreshTokenInterval(interval time.Duration) {
	stm.mu.Lock()
	defer stm.mu.Unlock()
	stm.refreshTokenInterval = interval
	log.Debugf("[Shared Token Manager] Set refresh token interval to %v", interval)
}

// GetOrCreateTokenManager returns the token manager for host and username,
// logging in on first use. A failed login is returned and nothing is cached.
func (stm *SharedTokenManager) GetOrCreateTokenManager(ctx context.Context, host string, credentials Credentials,
	httpClient *http.Client) (TokenManagerInterface, error) {
	key := TokenManagerKey{Host: host, Username: credentials.Username}

	stm.mu.RLock()
	if tm, exists := stm.tokenManagers[key.String()]; exists {
		stm.mu.RUnlock()
		log.Debugf("[Shared Token Manager] Reusing existing token manager for %s", key)
		return tm, nil
	}
	stm.mu.RUnlock()

	stm.mu.Lock()
	defer stm.mu.Unlock()

	if tm, exists := stm.tokenManagers[key.String()]; exists {
		return tm, nil
	}

	client := httpClient
	if client == nil {
		client = stm.clientFactory.GetDefaultClient()
	}

	tm := NewTokenManager(FormatBigIPURL(host), credentials, client)
	if err := tm.SyncToken(ctx); err != nil {
		return nil, err
	}

	if stm.refreshTokenInterval > 0 {
		stopCh := make(chan struct{})
		stm.stopChannels[key.String()] = stopCh
		go tm.Start(stopCh, stm.refreshTokenInterval)
		log.Debugf("[Shared Token Manager] Started token refresh for %s with interval %v", key, stm.refreshTokenInterval)
	}

	stm.tokenManagers[key.String()] = tm
	log.Debugf("[Shared Token Manager] Created new token manager for %s", key)
	return tm, nil
}

// GetTokenManager returns nil when no manager exists for host and username.
func (stm *SharedTokenManager) GetTokenManager(host, username string) TokenManagerInterface {
	key := TokenManagerKey{Host: host, Username: username}

	stm.mu.RLock()
	defer stm.mu.RUnlock()

	if tm, exists := stm.tokenManagers[key.String()]; exists {
		return tm
	}
	return nil
}

// GetActiveTokenManagers lists the keys of every cached manager.
func (stm *SharedTokenManager) GetActiveTokenManagers() []string {
	stm.mu.RLock()
	defer stm.mu.RUnlock()

	keys := make([]string, 0, len(stm.tokenManagers))
	for k := range stm.tokenManagers {
		keys = append(keys, k)
	}
	return keys
}

// StopAll stops every background refresh (used during shutdown).
func (stm *SharedTokenManager) StopAll() {
	stm.mu.Lock()
	defer stm.mu.Unlock()

	for key, stopCh := range stm.stopChannels {
		close(stopCh)
		log.Debugf("[Shared Token Manager] Stopped token refresh for %s", key)
	}
	stm.stopChannels = make(map[string]chan struct{})
}

// FormatBigIPURL prefixes host with https:// unless it already has a scheme.
func FormatBigIPURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return fmt.Sprintf("https://%s", host)
}
