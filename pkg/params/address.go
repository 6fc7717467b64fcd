/*-
 * Copyright (c) 2016-2024, F5 Networks, Inc.
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

package params

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// SplitRouteDomain splits an address of the form
// <ipv4_or_ipv6>[/<CIDR>][%<routeDomainID>] into its parts.
func SplitRouteDomain(address string) (ip string, rd string, cidr string, err error) {
	match := strings.Split(address, "%")
	if len(match) > 2 {
		return "", "", "", fmt.Errorf("too many route domain separators in %q", address)
	}
	if len(match) == 2 && strings.Contains(match[1], "/") {
		// <ip>%<rd>/<cidr> is not a valid ordering
		return "", "", "", fmt.Errorf("CIDR format is invalid for address %q", address)
	}
	ipCIDR := strings.Split(match[0], "/")
	ip = ipCIDR[0]
	if len(match) == 2 {
		// only numeric route domains
		if _, convErr := strconv.Atoi(match[1]); convErr != nil {
			return "", "", "", fmt.Errorf("route domain %q in %q is not numeric", match[1], address)
		}
		rd = match[1]
	}
	if len(ipCIDR) == 2 {
		cidr = ipCIDR[1]
		if _, _, cidrErr := net.ParseCIDR(ip + "/" + cidr); cidrErr != nil {
			return "", "", "", fmt.Errorf("CIDR for the address %q is not valid", address)
		}
	}
	return ip, rd, cidr, nil
}

// IsValidIP accepts IPv4 or IPv6 with an optional numeric route domain.
func IsValidIP(address string) bool {
	ip, _, cidr, err := SplitRouteDomain(address)
	if err != nil || cidr != "" {
		return false
	}
	return net.ParseIP(ip) != nil
}

// IsValidIPv4 is IsValidIP restricted to IPv4.
func IsValidIPv4(address string) bool {
	ip, _, cidr, err := SplitRouteDomain(address)
	if err != nil || cidr != "" {
		return false
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.To4() != nil
}

// IsValidIPv6 is IsValidIP restricted to IPv6 notation.
func IsValidIPv6(address string) bool {
	ip, _, cidr, err := SplitRouteDomain(address)
	if err != nil || cidr != "" {
		return false
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && strings.Contains(ip, ":")
}
