/*-
 * Copyright (c) 2017-2021 F5 Networks, Inc.
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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigiphandler"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/config"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/httpclient"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/resolver"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/tokenmanager"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
)

const (
	clientTimeout = 30 * time.Second
	// tokens live 20 minutes on the BIG-IP
	tokenRefreshInterval = 10 * time.Minute
)

func userAgent() string {
	return fmt.Sprintf("bigip-reconcile/%s", version)
}

// newClient builds the transport the provider asks for. The returned stop
// function ends background token refresh.
func newClient(ctx context.Context, p *config.Provider) (bigipclient.Client, func(), error) {
	if p.ResolveServerName != "" {
		addr, err := resolver.New(p.ResolveServerName).Resolve(ctx, p.Server)
		if err != nil {
			return nil, nil, err
		}
		if addr != p.Server {
			log.Infof("[INIT] Using %s for BIG-IP %s", addr, p.Server)
			p.Server = addr
		}
	}

	factory := httpclient.GetFactory()
	httpClient := factory.ClientFor(httpclient.ClientConfig{
		TrustedCerts:  p.TrustedCerts,
		SSLInsecure:   p.Insecure(),
		Timeout:       clientTimeout,
		EnableMetrics: *httpClientMetrics,
	})

	var tokens *tokenmanager.SharedTokenManager
	stop := func() {}
	if p.Auth == bigipclient.AuthToken {
		refresh := time.Duration(0)
		if *watchMode {
			refresh = tokenRefreshInterval
		}
		tokens = tokenmanager.NewSharedTokenManager(factory, refresh)
		stop = tokens.StopAll
	}
	baseURL := bigipclient.BaseURL(p.Server, p.ServerPort)
	log.Infof("[INIT] Connecting to BIG-IP %s over %s with %s auth", baseURL, p.Transport, p.Auth)

	switch p.Transport {
	case config.TransportSession:
		session := bigiphandler.CreateSession(bigiphandler.SessionConfig{
			Host:       baseURL,
			User:       p.User,
			Password:   p.Password,
			UserAgent:  userAgent(),
			HTTPClient: httpClient,
		})
		var token bigiphandler.TokenFunc
		if tokens != nil {
			creds := tokenmanager.Credentials{
				Username:          p.User,
				Password:          p.Password,
				LoginProviderName: p.AuthProvider,
			}
			token = func(ctx context.Context) (string, error) {
				tm, err := tokens.GetOrCreateTokenManager(ctx, baseURL, creds, httpClient)
				if err != nil {
					return "", err
				}
				return tm.GetToken(ctx)
			}
		}
		return bigiphandler.NewBigIPHandler(session, token), stop, nil
	default:
		return bigipclient.NewRESTClient(bigipclient.Config{
			Server:        p.Server,
			Port:          p.ServerPort,
			User:          p.User,
			Password:      p.Password,
			Auth:          p.Auth,
			LoginProvider: p.AuthProvider,
			UserAgent:     userAgent(),
			HTTPClient:    httpClient,
			Tokens:        tokens,
		}), stop, nil
	}
}
