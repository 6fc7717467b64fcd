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

// Package params turns raw user supplied key/value input into typed,
// validated values.
//
// Every accessor returns (value, ok, err). ok is false when the key was
// not supplied at all, which callers must keep distinct from an explicit
// empty value: "" means "clear this field on the device".
package params

import (
	"os"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	DefaultPartition = "Common"
	EnvPartition     = "F5_PARTITION"
)

// Params is a read-only view over raw input.
type Params struct {
	raw map[string]interface{}
}

// New copies raw; later changes to raw are not observed.
func New(raw map[string]interface{}) *Params {
	p := &Params{raw: make(map[string]interface{}, len(raw))}
	for k, v := range raw {
		if v == nil {
			continue
		}
		p.raw[k] = Normalize(v)
	}
	return p
}

// Has reports whether key was supplied.
func (p *Params) Has(key string) bool {
	_, ok := p.raw[key]
	return ok
}

// Get returns the raw value for key.
func (p *Params) Get(key string) (interface{}, bool) {
	v, ok := p.raw[key]
	return v, ok
}

// Map returns a shallow copy of the supplied values.
func (p *Params) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p.raw))
	for k, v := range p.raw {
		out[k] = v
	}
	return out
}

// Keys returns the supplied keys in sorted order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.raw))
	for k := range p.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Params) String(key string) (string, bool, error) {
	v, ok := p.raw[key]
	if !ok {
		return "", false, nil
	}
	s, err := ToString(v)
	if err != nil {
		return "", true, Invalid(key, "%v", err)
	}
	return s, true, nil
}

func (p *Params) Int(key string) (int, bool, error) {
	v, ok := p.raw[key]
	if !ok {
		return 0, false, nil
	}
	n, err := ToInt(v)
	if err != nil {
		return 0, true, Invalid(key, "%v", err)
	}
	return n, true, nil
}

func (p *Params) Bool(key string) (bool, bool, error) {
	v, ok := p.raw[key]
	if !ok {
		return false, false, nil
	}
	b, err := ToBool(v)
	if err != nil {
		return false, true, Invalid(key, "%v", err)
	}
	return b, true, nil
}

func (p *Params) StringList(key string) ([]string, bool, error) {
	v, ok := p.raw[key]
	if !ok {
		return nil, false, nil
	}
	l, err := ToStringList(v)
	if err != nil {
		return nil, true, Invalid(key, "%v", err)
	}
	return l, true, nil
}

func (p *Params) ObjectList(key string) ([]map[string]interface{}, bool, error) {
	v, ok := p.raw[key]
	if !ok {
		return nil, false, nil
	}
	l, err := ToObjectList(v)
	if err != nil {
		return nil, true, Invalid(key, "%v", err)
	}
	return l, true, nil
}

// IntRange is Int bounded to [min, max].
func (p *Params) IntRange(key string, min, max int) (int, bool, error) {
	n, ok, err := p.Int(key)
	if !ok || err != nil {
		return n, ok, err
	}
	if n < min || n > max {
		return 0, true, Invalid(key, "value %d must be between %d and %d", n, min, max)
	}
	return n, true, nil
}

// namedPorts are the service names BIG-IP accepts in place of a number.
var namedPorts = map[string]int{
	"any":            0,
	"ftp":            21,
	"ssh":            22,
	"smtp":           25,
	"domain":         53,
	"http":           80,
	"https":          443,
	"radius":         1812,
	"radius-acct":    1813,
	"ldap":           389,
	"ldaps":          636,
	"tacacs":         49,
	"snmp":           161,
	"http-alt":       8080,
	"https-alt":      8443,
	"microsoft-ds":   445,
	"netbios-ssn":    139,
	"syslog":         514,
	"ntp":            123,
	"kerberos":       88,
	"kerberos-admin": 749,
}

// ToPort accepts a port number or a known service name.
func ToPort(v interface{}) (int, error) {
	s, err := ToString(v)
	if err != nil {
		return 0, err
	}
	port := intstr.Parse(strings.TrimSpace(s))
	n := port.IntValue()
	if port.Type == intstr.String {
		known, ok := namedPorts[strings.ToLower(port.StrVal)]
		if !ok {
			return 0, Invalid("", "%q is not a valid port", s)
		}
		n = known
	}
	if n < 0 || n > 65535 {
		return 0, Invalid("", "port %d must be between 0 and 65535", n)
	}
	return n, nil
}

func (p *Params) Port(key string) (int, bool, error) {
	v, ok := p.raw[key]
	if !ok {
		return 0, false, nil
	}
	n, err := ToPort(v)
	if err != nil {
		return 0, true, Invalid(key, "%v", err)
	}
	return n, true, nil
}

// IPAddress validates an IPv4 or IPv6 address with an optional %rd suffix.
func (p *Params) IPAddress(key string) (string, bool, error) {
	s, ok, err := p.String(key)
	if !ok || err != nil {
		return s, ok, err
	}
	if !IsValidIP(s) {
		return "", true, Invalid(key, "%q is not a valid IP address", s)
	}
	return s, true, nil
}

// Enum restricts a string to allowed values.
func (p *Params) Enum(key string, allowed ...string) (string, bool, error) {
	s, ok, err := p.String(key)
	if !ok || err != nil {
		return s, ok, err
	}
	if !sets.NewString(allowed...).Has(s) {
		return "", true, Invalid(key, "value %q must be one of: %s", s, strings.Join(allowed, ", "))
	}
	return s, true, nil
}

// Partition resolves the partition: explicit value, then F5_PARTITION,
// then Common. Surrounding slashes are dropped.
func Partition(explicit string) string {
	p := strings.Trim(explicit, "/")
	if p == "" {
		p = strings.Trim(os.Getenv(EnvPartition), "/")
	}
	if p == "" {
		p = DefaultPartition
	}
	return p
}

// FQName prefixes a bare name with /partition/. Names that already start
// with a slash are returned untouched.
func FQName(partition, name string) string {
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + Partition(partition) + "/" + name
}

// SplitFQName is the inverse of FQName. Bare names get the default
// partition.
func SplitFQName(fq string) (partition, name string) {
	if !strings.HasPrefix(fq, "/") {
		return Partition(""), fq
	}
	parts := strings.SplitN(strings.TrimPrefix(fq, "/"), "/", 2)
	if len(parts) == 1 {
		return Partition(""), parts[0]
	}
	return parts[0], parts[1]
}
