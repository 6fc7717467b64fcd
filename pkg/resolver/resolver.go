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

// Package resolver turns a BIG-IP hostname into an address, either with the
// system resolver or by asking a specific DNS server.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/miekg/dns"
)

// Lookup selects the system resolver.
const Lookup = "LOOKUP"

const defaultDNSPort = "53"

type Resolver struct {
	// Server is "", LOOKUP, or a DNS server as host or host:port.
	Server string
	Client *dns.Client

	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

func New(server string) *Resolver {
	return &Resolver{
		Server:   server,
		Client:   &dns.Client{Timeout: 5 * time.Second},
		lookupIP: systemLookup,
	}
}

func systemLookup(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

// Resolve returns host unchanged when it already is an address.
func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	if isAddress(host) {
		return host, nil
	}
	if r.Server == "" || strings.EqualFold(r.Server, Lookup) {
		ips, err := r.lookupIP(ctx, host)
		if err != nil {
			return "", fmt.Errorf("error while resolving host %s: %v", host, err)
		}
		if len(ips) == 0 {
			return "", fmt.Errorf("no addresses for host %s", host)
		}
		if len(ips) > 1 {
			log.Warningf("[Resolver] Resolved multiple IP addresses for host '%s', choosing %s", host, ips[0])
		}
		return ips[0].String(), nil
	}
	return r.exchange(ctx, host)
}

func (r *Resolver) exchange(ctx context.Context, host string) (string, error) {
	server, port := splitServer(r.Server)
	if net.ParseIP(server) == nil {
		// the DNS server is itself a hostname
		ips, err := r.lookupIP(ctx, server)
		if err != nil || len(ips) == 0 {
			return "", fmt.Errorf("error while resolving DNS server %s: %v", r.Server, err)
		}
		server = ips[0].String()
	}

	msg := dns.Msg{}
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	res, _, err := r.Client.ExchangeContext(ctx, &msg, net.JoinHostPort(server, port))
	if err != nil {
		return "", fmt.Errorf("error while resolving host %s using DNS server %s: %v", host, r.Server, err)
	}
	if res.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("DNS server %s answered %s for host %s", r.Server, dns.RcodeToString[res.Rcode], host)
	}
	for _, rr := range res.Answer {
		if a, ok := rr.(*dns.A); ok {
			log.Debugf("[Resolver] %s resolved to %s by %s", host, a.A, r.Server)
			return a.A.String(), nil
		}
	}
	return "", fmt.Errorf("no results for host %s using DNS server %s", host, r.Server)
}

func splitServer(s string) (string, string) {
	if h, p, err := net.SplitHostPort(s); err == nil {
		if _, err := strconv.Atoi(p); err == nil {
			return h, p
		}
	}
	return strings.Trim(s, "[]"), defaultDNSPort
}

func isAddress(host string) bool {
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}
