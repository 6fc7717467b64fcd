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
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/config"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/reconciler"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/resource"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger/zaplog"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/ssh/terminal"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

var (
	// Flag sets
	flags         *pflag.FlagSet
	globalFlags   *pflag.FlagSet
	bigIPFlags    *pflag.FlagSet
	resourceFlags *pflag.FlagSet

	// Global
	logLevel          *string
	logFile           *string
	logFormat         *string
	timeout           *time.Duration
	checkMode         *bool
	printVersion      *bool
	disableTeems      *bool
	resultsFile       *string
	httpAddress       *string
	watchMode         *bool
	verifyInterval    *int
	pollInterval      *int
	pollRetries       *int
	httpClientMetrics *bool

	// BigIP
	bigIPServer       *string
	bigIPServerPort   *int
	bigIPUsername     *string
	bigIPPassword     *string
	credsDir          *string
	validateCerts     *bool
	trustedCertsFile  *string
	authMode          *string
	authProvider      *string
	transport         *string
	resolveServerName *string

	// Resource
	configFile        *string
	resourceKind      *string
	resourceName      *string
	resourcePartition *string
	resourceState     *string
	resourceParams    *[]string

	// package variables
	version   string
	buildInfo string
	stdout    io.Writer = os.Stdout
)

func _init() {
	flags = pflag.NewFlagSet("main", pflag.PanicOnError)
	globalFlags = pflag.NewFlagSet("Global", pflag.PanicOnError)
	bigIPFlags = pflag.NewFlagSet("BigIP", pflag.PanicOnError)
	resourceFlags = pflag.NewFlagSet("Resource", pflag.PanicOnError)

	// Flag wrapping
	var err error
	var width int
	fd := int(os.Stdout.Fd())
	if terminal.IsTerminal(fd) {
		width, _, err = terminal.GetSize(fd)
		if nil != err {
			width = 0
		}
	}

	// Global flags
	logLevel = globalFlags.String("log-level", "INFO",
		"Optional, logging level")
	logFile = globalFlags.String("log-file", "",
		"Optional, filepath to store the logs instead of writing them to stderr")
	logFormat = globalFlags.String("log-format", logFormatText,
		"Optional, 'text' or 'json' log lines")
	timeout = globalFlags.Duration("timeout", 0,
		"Optional, overall deadline for a run, e.g. 10m. Zero means no deadline")
	checkMode = globalFlags.Bool("check", false,
		"Optional, report what would change without changing the BIG-IP")
	printVersion = globalFlags.Bool("version", false,
		"Optional, print version and exit.")
	disableTeems = globalFlags.Bool("disable-teems", false,
		"Optional, flag to disable sending telemetry data to TEEM")
	resultsFile = globalFlags.String("results-file", "",
		"Optional, also write the JSON result to this file")
	httpAddress = globalFlags.String("http-listen-address", "0.0.0.0:8080",
		"Optional, address to serve /metrics and /health on in watch mode")
	watchMode = globalFlags.Bool("watch", false,
		"Optional, keep running and re-apply the desired state on file change "+
			"and every verify-interval seconds")
	verifyInterval = globalFlags.Int("verify-interval", 30,
		"Optional, interval (in seconds) at which to verify the BIG-IP configuration in watch mode.")
	pollInterval = globalFlags.Int("poll-interval", 3,
		"Optional, interval (in seconds) between status reads while waiting for the BIG-IP to settle")
	pollRetries = globalFlags.Int("poll-retries", 180,
		"Optional, number of status reads before giving up on the BIG-IP settling")

	globalFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  Global:\n%s\n", globalFlags.FlagUsagesWrapped(width))
	}

	// BigIP flags
	bigIPServer = bigIPFlags.String("server", "",
		"Required, BIG-IP host name or address. Also read from "+config.EnvServer)
	bigIPServerPort = bigIPFlags.Int("server-port", 0,
		"Optional, BIG-IP management port, defaults to 443. Also read from "+config.EnvServerPort)
	bigIPUsername = bigIPFlags.String("user", "",
		"Required, user name for the Big-IP user account. Also read from "+config.EnvUser)
	bigIPPassword = bigIPFlags.String("password", "",
		"Required, password for the Big-IP user account. Also read from "+config.EnvPassword)
	credsDir = bigIPFlags.String("credentials-directory", "",
		"Optional, directory that contains the BIG-IP username, password, and/or "+
			"url files. To be used instead of username, password, and/or url arguments.")
	validateCerts = bigIPFlags.Bool("validate-certs", true,
		"Optional, verify the BIG-IP certificate. Also read from "+config.EnvValidateCerts)
	trustedCertsFile = bigIPFlags.String("trusted-certs", "",
		"Optional, PEM bundle of CA certificates to trust for the BIG-IP")
	authMode = bigIPFlags.String("auth", "",
		"Optional, 'token' (default) or 'basic' authentication")
	authProvider = bigIPFlags.String("auth-provider", "",
		"Optional, login provider used for token authentication, defaults to tmos")
	transport = bigIPFlags.String("transport", "",
		"Optional, 'rest' (default) or 'session' for a session that retries while the BIG-IP is unavailable")
	resolveServerName = bigIPFlags.String("resolve-server-name", "",
		"Optional, resolve the server name before connecting. Without a value the "+
			"system resolver is used, otherwise the given DNS server (host[:port]).")
	bigIPFlags.Lookup("resolve-server-name").NoOptDefVal = "LOOKUP"
	httpClientMetrics = bigIPFlags.Bool("http-client-metrics", false,
		"Optional, adds HTTP client metric instrumentation for the BIG-IP client")

	bigIPFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  BigIP:\n%s\n", bigIPFlags.FlagUsagesWrapped(width))
	}

	// Resource flags
	configFile = resourceFlags.String("config", "",
		"Optional, YAML desired-state file with provider and resources sections")
	resourceKind = resourceFlags.String("kind", "",
		"Optional, kind of a single resource, one of: "+strings.Join(resource.Names(), ", "))
	resourceName = resourceFlags.String("name", "",
		"Optional, name of the single resource")
	resourcePartition = resourceFlags.String("partition", "",
		"Optional, partition of the single resource. Also read from F5_PARTITION, defaults to Common")
	resourceState = resourceFlags.String("state", resource.StatePresent,
		"Optional, 'present' or 'absent'")
	resourceParams = resourceFlags.StringArrayP("param", "p", []string{},
		"Optional, key=value parameter of the single resource, may be repeated")

	resourceFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "  Resource:\n%s\n", resourceFlags.FlagUsagesWrapped(width))
	}

	flags.AddFlagSet(globalFlags)
	flags.AddFlagSet(bigIPFlags)
	flags.AddFlagSet(resourceFlags)

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s\n", os.Args[0])
		globalFlags.Usage()
		bigIPFlags.Usage()
		resourceFlags.Usage()
	}
}

func initLogger(logLevel, logFile, logFormat string) error {
	var logger log.Logger
	switch logFormat {
	case logFormatJSON:
		if len(logFile) > 0 {
			f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
			if err != nil {
				return fmt.Errorf("unable to open log file %s: %v", logFile, err)
			}
			logger = zaplog.NewZapLoggerExt(zapcore.Lock(f))
		} else {
			logger = zaplog.NewZapLogger()
		}
	case logFormatText:
		if len(logFile) > 0 {
			fl, err := log.NewFileLogger(logFile)
			if err != nil {
				return err
			}
			logger = fl
		} else {
			// stdout carries the result document
			logger = log.NewWriterLogger(os.Stderr)
		}
	default:
		return fmt.Errorf("Unknown log format requested: %s\n"+
			"    Valid log formats are: text, json", logFormat)
	}
	log.RegisterLogger(
		log.LL_MIN_LEVEL, log.LL_MAX_LEVEL, logger)

	if ll := log.NewLogLevel(logLevel); nil != ll {
		log.SetLogLevel(*ll)
	} else {
		return fmt.Errorf("Unknown log level requested: %s\n"+
			"    Valid log levels are: DEBUG, INFO, WARNING, ERROR, CRITICAL", logLevel)
	}
	return nil
}

// this is to allow for unit testing
func init() {
	_init()
}

func verifyArgs() error {
	*logLevel = strings.ToUpper(*logLevel)
	logErr := initLogger(*logLevel, *logFile, strings.ToLower(*logFormat))
	if nil != logErr {
		return logErr
	}

	if len(*configFile) == 0 && len(*resourceKind) == 0 {
		return fmt.Errorf("Missing desired state: provide --config or --kind")
	}
	if len(*configFile) > 0 && len(*resourceKind) > 0 {
		return fmt.Errorf("Can not specify both config and kind")
	}
	if len(*resourceKind) == 0 && (len(*resourceName) > 0 || len(*resourceParams) > 0) {
		return fmt.Errorf("--name and --param require --kind")
	}
	if *watchMode && len(*configFile) == 0 {
		return fmt.Errorf("--watch requires --config")
	}
	if *verifyInterval <= 0 {
		return fmt.Errorf("--verify-interval must be positive")
	}
	if *pollInterval <= 0 || *pollRetries <= 0 {
		return fmt.Errorf("--poll-interval and --poll-retries must be positive")
	}
	if *timeout < 0 {
		return fmt.Errorf("--timeout must not be negative")
	}
	for _, p := range *resourceParams {
		if !strings.Contains(p, "=") {
			return fmt.Errorf("Invalid parameter %q, expected key=value", p)
		}
	}
	return nil
}

// flagProvider holds only what was given on the command line.
func flagProvider() (config.Provider, error) {
	p := config.Provider{
		Server:            *bigIPServer,
		ServerPort:        *bigIPServerPort,
		User:              *bigIPUsername,
		Password:          *bigIPPassword,
		Transport:         *transport,
		Auth:              *authMode,
		AuthProvider:      *authProvider,
		ResolveServerName: *resolveServerName,
	}
	if bigIPFlags.Changed("validate-certs") {
		v := *validateCerts
		p.ValidateCerts = &v
	}
	if len(*trustedCertsFile) > 0 {
		pem, err := os.ReadFile(*trustedCertsFile)
		if err != nil {
			return p, fmt.Errorf("unable to read trusted certs: %v", err)
		}
		p.TrustedCerts = string(pem)
	}
	if strings.Contains(p.Server, "://") {
		if err := p.SetServerURL(p.Server); err != nil {
			return p, err
		}
	}
	return p, nil
}

// getCredentials resolves the provider: config file, then flags, then the
// credentials directory, then the environment.
func getCredentials(fileProvider config.Provider) (config.Provider, error) {
	p := fileProvider
	fp, err := flagProvider()
	if err != nil {
		return p, err
	}
	p.Merge(fp)
	if err := p.ReadCredentialsDir(*credsDir); err != nil {
		return p, err
	}
	if err := p.ApplyEnv(); err != nil {
		return p, err
	}
	p.Defaults()

	if len(p.Password) == 0 && terminal.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "BIG-IP password for %s@%s: ", p.User, p.Server)
		pass, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return p, fmt.Errorf("unable to read password: %v", err)
		}
		p.Password = string(pass)
	}
	return p, p.Validate()
}

// desiredState builds the provider from the file (if any) and the
// requests from the file or the single resource flags.
func desiredState() (config.Provider, []reconciler.Request, error) {
	if len(*configFile) > 0 {
		ds, err := config.Load(*configFile)
		if err != nil {
			return config.Provider{}, nil, err
		}
		return ds.Provider, ds.Resources, nil
	}
	return config.Provider{}, []reconciler.Request{flagRequest()}, nil
}

func flagRequest() reconciler.Request {
	req := reconciler.Request{
		Kind:      *resourceKind,
		Name:      *resourceName,
		Partition: *resourcePartition,
		State:     *resourceState,
		Params:    map[string]interface{}{},
	}
	for _, kv := range *resourceParams {
		parts := strings.SplitN(kv, "=", 2)
		key, value := strings.TrimSpace(parts[0]), parts[1]
		// repeated keys build a list, e.g. -p monitors=a -p monitors=b
		if prev, ok := req.Params[key]; ok {
			switch t := prev.(type) {
			case []interface{}:
				req.Params[key] = append(t, value)
			default:
				req.Params[key] = []interface{}{t, value}
			}
			continue
		}
		req.Params[key] = value
	}
	return req
}

func fail(err error, usage bool) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	if usage {
		flags.Usage()
	}
	printFailure(stdout, err)
	os.Exit(1)
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			os.Exit(1)
		}
	}()
	err := flags.Parse(os.Args)
	if nil != err {
		os.Exit(1)
	}

	if *printVersion {
		fmt.Printf("Version: %s\nBuild: %s\n", version, buildInfo)
		os.Exit(0)
	}

	err = verifyArgs()
	if nil != err {
		fail(err, true)
	}
	defer log.Close()

	log.Infof("[INIT] Starting: bigip-reconcile - Version: %s, BuildInfo: %s", version, buildInfo)

	fileProvider, requests, err := desiredState()
	if nil != err {
		fail(err, false)
	}
	provider, err := getCredentials(fileProvider)
	if nil != err {
		fail(err, false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("Exiting - signal %v", sig)
		cancel()
	}()

	client, stop, err := newClient(ctx, &provider)
	if nil != err {
		fail(err, false)
	}
	defer stop()

	loop, err := newReconcileLoop(client, requests, provider.Transport)
	if nil != err {
		fail(err, false)
	}
	defer loop.Stop()

	if *watchMode {
		err = loop.Watch(ctx)
	} else {
		err = loop.Once(ctx)
	}
	if nil != err {
		log.Errorf("%v", err)
		loop.Stop()
		stop()
		os.Exit(1)
	}
}
