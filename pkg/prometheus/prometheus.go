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

package prometheus

import (
	"sync"

	log "github.com/F5Networks/f5-bigip-reconciler/pkg/vlogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconciliations counts finished reconciliations by kind, action and outcome.
var Reconciliations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigip_reconcile_total",
		Help: "Total count of reconciliations run against the BIG-IP",
	},
	[]string{"kind", "action", "result"},
)

// ReconcileDuration observes wall time of a reconciliation by kind.
var ReconcileDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bigip_reconcile_duration_seconds",
		Help:    "Time taken to reconcile a single resource",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	},
	[]string{"kind"},
)

// PollIterations observes how many status reads a poll needed.
var PollIterations = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bigip_poll_iterations",
		Help:    "Number of status reads before a poll loop terminated",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 180},
	},
	[]string{"kind", "result"},
)

// LastPassErrors is the number of failed resources in the latest pass.
var LastPassErrors = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "bigip_reconcile_last_pass_errors",
		Help: "Count of resources that failed in the most recent reconcile pass",
	},
)

// ClientInFlightRequests, ClientAPIRequestsCounter and ClientHistogramVec
// instrument the BIG-IP HTTP client when --http-client-metrics is set.
var ClientInFlightRequests = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "bigip_client_in_flight_requests",
	Help: "A gauge of in-flight requests for the BIG-IP client.",
})

var ClientAPIRequestsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bigip_client_api_requests_total",
		Help: "A counter for requests from the BIG-IP client.",
	},
	[]string{"code", "method"},
)

var ClientHistogramVec = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bigip_client_request_duration_seconds",
		Help:    "A histogram of request latencies.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method"},
)

// ClientDNSLatency and ClientTLSLatency are fed by ClientTrace.
var ClientDNSLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bigip_client_dns_duration_seconds",
		Help:    "Trace dns latency histogram.",
		Buckets: []float64{.005, .01, .025, .05},
	},
	[]string{"event"},
)

var ClientTLSLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bigip_client_tls_duration_seconds",
		Help:    "Trace tls latency histogram.",
		Buckets: []float64{.05, .1, .25, .5},
	},
	[]string{"event"},
)

// ClientTrace wires the DNS and TLS histograms into promhttp.
var ClientTrace = &promhttp.InstrumentTrace{
	DNSStart: func(t float64) {
		ClientDNSLatency.WithLabelValues("dns_start").Observe(t)
	},
	DNSDone: func(t float64) {
		ClientDNSLatency.WithLabelValues("dns_done").Observe(t)
	},
	TLSHandshakeStart: func(t float64) {
		ClientTLSLatency.WithLabelValues("tls_handshake_start").Observe(t)
	},
	TLSHandshakeDone: func(t float64) {
		ClientTLSLatency.WithLabelValues("tls_handshake_done").Observe(t)
	},
}

var registerOnce sync.Once

// RegisterMetrics registers every collector with the default registry.
// Safe to call more than once.
func RegisterMetrics(httpClientMetrics bool) {
	registerOnce.Do(func() {
		prometheus.MustRegister(Reconciliations)
		prometheus.MustRegister(ReconcileDuration)
		prometheus.MustRegister(PollIterations)
		prometheus.MustRegister(LastPassErrors)
		if httpClientMetrics {
			prometheus.MustRegister(ClientInFlightRequests, ClientAPIRequestsCounter,
				ClientHistogramVec, ClientDNSLatency, ClientTLSLatency)
		}
		log.Debug("[Metrics] Registered BIG-IP reconciler metrics")
	})
}
