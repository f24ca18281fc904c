/*
Copyright 2026 The Dispatchkit Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes Prometheus request metrics for the
// dispatcher. Labels are method and status only; the route key is
// deliberately not a label because unmatched paths would make the
// cardinality unbounded.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dispatcher's Prometheus collectors on a dedicated
// registry.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	registry        *prometheus.Registry
}

// New creates the collectors under the given namespace. An empty
// namespace defaults to "dispatch".
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dispatch"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched HTTP requests",
		},
		[]string{"method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Dispatch duration in seconds, handler included",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "status"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of requests currently being dispatched",
		},
	)

	m.registry.MustRegister(m.requestsTotal, m.requestDuration, m.activeRequests)
	return m
}

// Handler returns the exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count, duration and in-flight gauge
// around next.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.activeRequests.Inc()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.activeRequests.Dec()
		status := strconv.Itoa(rec.status)
		m.requestsTotal.WithLabelValues(r.Method, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the status code written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}
