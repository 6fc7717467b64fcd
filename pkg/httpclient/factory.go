package httpclient

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"sync"
	"time"

	bigIPPrometheus "github.com/F5Networks/f5-bigip-reconciler/pkg/prometheus"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultTimeout = 30 * time.Second

// ClientConfig holds configuration for HTTP client creation
type ClientConfig struct {
	TrustedCerts  string
	SSLInsecure   bool
	Timeout       time.Duration
	EnableMetrics bool
}

// HTTPClientFactory hands out one *http.Client per distinct configuration
type HTTPClientFactory struct {
	mu      sync.RWMutex
	clients map[string]*http.Client
}

var (
	factory *HTTPClientFactory
	once    sync.Once
)

// NewFactory returns an empty factory
func NewFactory() *HTTPClientFactory {
	return &HTTPClientFactory{
		clients: make(map[string]*http.Client),
	}
}

// GetFactory returns the process wide factory
func GetFactory() *HTTPClientFactory {
	once.Do(func() {
		factory = NewFactory()
	})
	return factory
}

// ClientFor returns the cached client for config, creating it on first use
func (f *HTTPClientFactory) ClientFor(config ClientConfig) *http.Client {
	return f.GetOrCreateClient(generateClientKey(config), config)
}

// GetOrCreateClient returns an existing HTTP client or creates a new one based on the configuration
func (f *HTTPClientFactory) GetOrCreateClient(key string, config ClientConfig) *http.Client {
	f.mu.RLock()
	if client, exists := f.clients[key]; exists {
		f.mu.RUnlock()
		return client
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, exists := f.clients[key]; exists {
		return client
	}

	client := f.createHTTPClient(config)
	f.clients[key] = client
	log.Debugf("[HTTP Client Factory] Created new HTTP client for key: %s", key)

	return client
}

// NewTransport builds the TLS transport shared by the REST client and the
// retrying session.
func NewTransport(trustedCerts string, insecure bool) *http.Transport {
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}
	if trustedCerts != "" {
		if ok := rootCAs.AppendCertsFromPEM([]byte(trustedCerts)); !ok {
			log.Debugf("[HTTP Client Factory] No certs appended, using only system certs")
		}
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: insecure,
			RootCAs:            rootCAs,
		},
	}
}

func (f *HTTPClientFactory) createHTTPClient(config ClientConfig) *http.Client {
	tr := NewTransport(config.TrustedCerts, config.SSLInsecure)

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	if config.EnableMetrics {
		log.Debug("[HTTP Client Factory] Creating HTTP client with metrics instrumentation")
		instrumented := promhttp.InstrumentRoundTripperInFlight(bigIPPrometheus.ClientInFlightRequests,
			promhttp.InstrumentRoundTripperCounter(bigIPPrometheus.ClientAPIRequestsCounter,
				promhttp.InstrumentRoundTripperTrace(bigIPPrometheus.ClientTrace,
					promhttp.InstrumentRoundTripperDuration(bigIPPrometheus.ClientHistogramVec, tr),
				),
			),
		)
		return &http.Client{
			Transport: instrumented,
			Timeout:   timeout,
		}
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}

// GetDefaultClient returns a basic HTTP client with secure defaults
func (f *HTTPClientFactory) GetDefaultClient() *http.Client {
	return f.ClientFor(ClientConfig{Timeout: defaultTimeout})
}

// generateClientKey creates a deterministic key for a client configuration
func generateClientKey(config ClientConfig) string {
	key := ""
	if config.TrustedCerts != "" {
		key += fmt.Sprintf("certs(%x):", sha256.Sum256([]byte(config.TrustedCerts)))
	}
	if config.SSLInsecure {
		key += "insecure:"
	}
	if config.EnableMetrics {
		key += "metrics:"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return key + timeout.String()
}
