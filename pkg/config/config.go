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

// Package config loads the desired-state file and resolves the provider
// settings from the file, the environment and a credentials directory.
package config

import (
	"fmt"
	"io/ioutil"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/params"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/reconciler"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"gopkg.in/yaml.v2"
)

// Provider environment variables
const (
	EnvServer        = "F5_SERVER"
	EnvServerPort    = "F5_SERVER_PORT"
	EnvUser          = "F5_USER"
	EnvPassword      = "F5_PASSWORD"
	EnvValidateCerts = "F5_VALIDATE_CERTS"
)

const (
	TransportREST    = "rest"
	TransportSession = "session"

	DefaultServerPort    = 443
	DefaultLoginProvider = "tmos"
)

// Provider is how to reach the device.
type Provider struct {
	Server            string `yaml:"server"`
	ServerPort        int    `yaml:"server_port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	ValidateCerts     *bool  `yaml:"validate_certs"`
	TrustedCerts      string `yaml:"trusted_certs"`
	Transport         string `yaml:"transport"`
	Auth              string `yaml:"auth"`
	AuthProvider      string `yaml:"auth_provider"`
	ResolveServerName string `yaml:"resolve_server_name"`
}

// DesiredState is the content of a desired-state file.
type DesiredState struct {
	Provider  Provider             `yaml:"provider"`
	Resources []reconciler.Request `yaml:"resources"`
}

// Load reads and parses a desired-state file.
func Load(path string) (*DesiredState, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read desired-state file %s: %v", path, err)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	log.Debugf("[Config] Loaded %d resources from %s", len(ds.Resources), path)
	return ds, nil
}

// Parse decodes a desired-state document. Unknown top level keys are
// rejected so that typos surface.
func Parse(data []byte) (*DesiredState, error) {
	ds := &DesiredState{}
	if err := yaml.UnmarshalStrict(data, ds); err != nil {
		return nil, fmt.Errorf("invalid desired-state document: %v", err)
	}
	for i := range ds.Resources {
		r := &ds.Resources[i]
		if r.Kind == "" {
			return nil, params.Invalid(fmt.Sprintf("resources[%d].kind", i), "a kind is required")
		}
		if r.Params != nil {
			r.Params, _ = params.Normalize(r.Params).(map[string]interface{})
		}
	}
	return ds, nil
}

// ApplyEnv fills unset provider fields from F5_* variables.
func (p *Provider) ApplyEnv() error {
	if p.Server == "" {
		p.Server = os.Getenv(EnvServer)
	}
	if p.ServerPort == 0 {
		if v := os.Getenv(EnvServerPort); v != "" {
			port, err := params.ToPort(v)
			if err != nil {
				return params.Invalid(EnvServerPort, "%v", err)
			}
			p.ServerPort = port
		}
	}
	if p.User == "" {
		p.User = os.Getenv(EnvUser)
	}
	if p.Password == "" {
		p.Password = os.Getenv(EnvPassword)
	}
	if p.ValidateCerts == nil {
		if v := os.Getenv(EnvValidateCerts); v != "" {
			b, err := params.ToBool(v)
			if err != nil {
				return params.Invalid(EnvValidateCerts, "%v", err)
			}
			p.ValidateCerts = &b
		}
	}
	return nil
}

// Merge overrides p with every field set in o.
func (p *Provider) Merge(o Provider) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Server, o.Server)
	set(&p.User, o.User)
	set(&p.Password, o.Password)
	set(&p.TrustedCerts, o.TrustedCerts)
	set(&p.Transport, o.Transport)
	set(&p.Auth, o.Auth)
	set(&p.AuthProvider, o.AuthProvider)
	set(&p.ResolveServerName, o.ResolveServerName)
	if o.ServerPort != 0 {
		p.ServerPort = o.ServerPort
	}
	if o.ValidateCerts != nil {
		v := *o.ValidateCerts
		p.ValidateCerts = &v
	}
}

// Defaults fills what is still unset.
func (p *Provider) Defaults() {
	if p.ServerPort == 0 {
		p.ServerPort = DefaultServerPort
	}
	if p.Transport == "" {
		p.Transport = TransportREST
	}
	if p.Auth == "" {
		p.Auth = bigipclient.AuthToken
	}
	if p.AuthProvider == "" {
		p.AuthProvider = DefaultLoginProvider
	}
	if p.ValidateCerts == nil {
		v := true
		p.ValidateCerts = &v
	}
}

// Insecure reports whether certificate validation is off.
func (p *Provider) Insecure() bool {
	return p.ValidateCerts != nil && !*p.ValidateCerts
}

func (p *Provider) Validate() error {
	var errs []error
	if p.Server == "" {
		errs = append(errs, params.Invalid("server", "BIG-IP server not specified"))
	}
	if p.User == "" {
		errs = append(errs, params.Invalid("user", "BIG-IP username not specified"))
	}
	if p.Password == "" {
		errs = append(errs, params.Invalid("password", "BIG-IP password not specified"))
	}
	if p.Transport != TransportREST && p.Transport != TransportSession {
		errs = append(errs, params.Invalid("transport", "value %q must be one of: %s, %s", p.Transport, TransportREST, TransportSession))
	}
	if p.Auth != bigipclient.AuthBasic && p.Auth != bigipclient.AuthToken {
		errs = append(errs, params.Invalid("auth", "value %q must be one of: %s, %s", p.Auth, bigipclient.AuthBasic, bigipclient.AuthToken))
	}
	if p.ServerPort < 1 || p.ServerPort > 65535 {
		errs = append(errs, params.Invalid("server_port", "port %d must be between 1 and 65535", p.ServerPort))
	}
	return params.Aggregate(errs)
}

// ReadCredentialsDir loads username, password and url files from dir.
// Missing files fall back to what p already holds.
func (p *Provider) ReadCredentialsDir(dir string) error {
	if dir == "" {
		return nil
	}
	var bigipURL string
	setField := func(field *string, name, fieldType string) error {
		fileBytes, readErr := ioutil.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			log.Debugf("[Config] No %s in credentials directory, falling back to CLI argument", fieldType)
			if len(*field) == 0 {
				return fmt.Errorf("BIG-IP %s not specified", fieldType)
			}
			return nil
		}
		*field = strings.TrimSpace(string(fileBytes))
		return nil
	}

	if err := setField(&p.User, "username", "username"); err != nil {
		return err
	}
	if err := setField(&p.Password, "password", "password"); err != nil {
		return err
	}
	bigipURL = p.Server
	if err := setField(&bigipURL, "url", "url"); err != nil {
		return err
	}
	return p.SetServerURL(bigipURL)
}

// SetServerURL accepts host, host:port or https://host[:port]/.
func (p *Provider) SetServerURL(raw string) error {
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("Error parsing url: %s", err)
	}
	if len(u.Path) > 0 && u.Path != "/" {
		return fmt.Errorf("BIGIP-URL path must be empty or '/'; check URL formatting and/or remove %s from path", u.Path)
	}
	p.Server = u.Hostname()
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("Error parsing url port: %s", err)
		}
		p.ServerPort = n
	}
	return nil
}

// Address is host:port for logging.
func (p *Provider) Address() string {
	return net.JoinHostPort(p.Server, strconv.Itoa(p.ServerPort))
}
