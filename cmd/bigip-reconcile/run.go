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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/F5Networks/f5-bigip-reconciler/pkg/bigipclient"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/config"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/health"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/pollers"
	bigIPPrometheus "github.com/F5Networks/f5-bigip-reconciler/pkg/prometheus"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/reconciler"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/teem"
	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/watchmanager"
	"github.com/F5Networks/f5-bigip-reconciler/pkg/writer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	writeTimeout = 5 * time.Second
	teemTimeout  = 5 * time.Second
)

type failure struct {
	Failed bool   `json:"failed"`
	Msg    string `json:"msg"`
}

func printFailure(out io.Writer, err error) {
	b, _ := json.Marshal(failure{Failed: true, Msg: err.Error()})
	fmt.Fprintln(out, string(b))
}

func printSummary(out io.Writer, summary *reconciler.Summary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

// reconcileLoop runs passes over the desired state and reports them.
// Passes never overlap.
type reconcileLoop struct {
	sync.Mutex
	manager  *reconciler.Manager
	requests []reconciler.Request
	writer   writer.Writer
	health   *health.HealthChecker
	teems    *teem.TeemsData
	out      io.Writer
	timeout  time.Duration
	// reload re-reads the requests before a pass, nil for a fixed set
	reload func() ([]reconciler.Request, error)
}

func newReconcileLoop(client bigipclient.Client, requests []reconciler.Request, transport string) (*reconcileLoop, error) {
	mode := "once"
	if *watchMode {
		mode = "watch"
	}
	loop := &reconcileLoop{
		manager: reconciler.NewManager(client, reconciler.Options{
			CheckMode:    *checkMode,
			PollInterval: time.Duration(*pollInterval) * time.Second,
			PollRetries:  *pollRetries,
		}),
		requests: requests,
		health:   &health.HealthChecker{},
		teems:    teem.NewTeemsData(version, transport, mode, time.Now().UTC().Format(time.RFC3339Nano)),
		out:      stdout,
		timeout:  *timeout,
	}
	if *disableTeems {
		loop.teems.AccessEnabled = false
		log.Debug("Telemetry data reporting to TEEM server is disabled")
	}
	if len(*resultsFile) > 0 {
		w, err := writer.NewResultsWriter(*resultsFile)
		if err != nil {
			return nil, err
		}
		loop.writer = w
	}
	if *watchMode {
		path := *configFile
		loop.reload = func() ([]reconciler.Request, error) {
			ds, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return ds.Resources, nil
		}
	}
	return loop, nil
}

func (l *reconcileLoop) Stop() {
	if l.writer != nil {
		l.writer.Stop()
		l.writer = nil
	}
}

// pass reconciles every request once under the configured deadline.
func (l *reconcileLoop) pass(ctx context.Context) (*reconciler.Summary, error) {
	l.Lock()
	defer l.Unlock()

	if l.reload != nil {
		reqs, err := l.reload()
		if err != nil {
			return nil, err
		}
		l.requests = reqs
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	summary, err := l.manager.ReconcileAll(ctx, l.requests)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %v: %v", l.timeout, err)
	}
	return summary, err
}

// report prints the outcome and mirrors it into the results file, the
// health endpoint, metrics and telemetry.
func (l *reconcileLoop) report(summary *reconciler.Summary, err error) {
	l.health.Record(err)

	failed := 0
	sections := map[string]interface{}{}
	if err != nil {
		failed = 1
		printFailure(l.out, err)
		sections["failed"] = true
		sections["msg"] = err.Error()
	} else {
		if perr := printSummary(l.out, summary); perr != nil {
			log.Errorf("[INIT] unable to print result: %v", perr)
		}
		sections["changed"] = summary.Changed
		sections["results"] = summary.Results
		for _, r := range summary.Results {
			l.teems.Count(r.Kind, r.Changed)
		}
	}
	bigIPPrometheus.LastPassErrors.Set(float64(failed))

	if l.writer != nil {
		if werr := writer.WriteSections(l.writer, sections, writeTimeout); werr != nil {
			log.Warningf("[INIT] %v", werr)
		}
	}
}

func (l *reconcileLoop) postTeems() {
	if !l.teems.AccessEnabled {
		return
	}
	done := make(chan bool, 1)
	go func() { done <- l.teems.PostTeemsData() }()
	select {
	case ok := <-done:
		if !ok {
			log.Debug("Unable to post data to TEEM server")
		}
	case <-time.After(teemTimeout):
		log.Debug("Posting data to TEEM server timed out")
	}
	l.teems.Reset()
}

// Once runs a single pass.
func (l *reconcileLoop) Once(ctx context.Context) error {
	summary, err := l.pass(ctx)
	l.report(summary, err)
	if err == nil {
		l.postTeems()
	}
	return err
}

// Watch re-applies the desired state every verify-interval and whenever
// the desired-state file changes, until ctx is cancelled.
func (l *reconcileLoop) Watch(ctx context.Context) error {
	bigIPPrometheus.RegisterMetrics(*httpClientMetrics)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", l.health.HealthCheckHandler())
	srv := &http.Server{Addr: *httpAddress, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("[INIT] http server on %s stopped: %v", *httpAddress, err)
		}
	}()
	defer srv.Close()

	poller := pollers.NewIntervalPoller(func(context.Context) (interface{}, error) {
		return l.pass(ctx)
	}, time.Duration(*verifyInterval)*time.Second)
	teemsPosted := false
	err := poller.RegisterListener(func(obj interface{}, err error) {
		summary, _ := obj.(*reconciler.Summary)
		l.report(summary, err)
		if err == nil && !teemsPosted {
			teemsPosted = true
			l.postTeems()
		}
	})
	if err != nil {
		return err
	}

	fw, err := watchmanager.NewFileWatcher(func() {
		log.Infof("[INIT] %s changed, reconciling", *configFile)
		summary, err := l.pass(ctx)
		l.report(summary, err)
	}, *configFile)
	if err != nil {
		return err
	}
	go func() {
		if err := fw.Run(ctx, nil); err != nil {
			log.Errorf("[INIT] %v", err)
		}
	}()

	if err := poller.Run(); err != nil {
		return err
	}
	<-ctx.Done()
	poller.Stop()
	return nil
}
