/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package metrics registers the Prometheus collectors for proxied
// requests, cache events, and reload outcomes, and exposes the
// /metrics handler that cmd/proxyd serves on its own metrics listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proxygate"

var (
	// ProxyRequestsTotal counts every request that reached a matched
	// location, labeled by location, upstream, and response status.
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of proxied requests by location, upstream, and status.",
		},
		[]string{"location", "upstream", "status"},
	)

	// ProxyRequestDuration observes end-to-end request latency from
	// location match through response pipeline completion.
	ProxyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds by location.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"location"},
	)

	// CacheLookupsTotal counts cache plugin lookups by outcome: hit or
	// miss (an expired entry counts as a miss).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	// CacheLockWaitSeconds observes how long a request waited on the
	// single-flight lock for a key another request was already filling.
	CacheLockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting on the single-flight cache lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2, 3},
		},
	)

	// CacheEvictionsTotal counts entries the Eviction Manager discarded
	// to stay within its configured capacity.
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total cache entries evicted to stay within capacity.",
		},
	)

	// ReloadsTotal counts reload controller ticks by outcome: noop,
	// hot_reload, restart, or invalid_config.
	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reload",
			Name:      "total",
			Help:      "Total reload controller ticks by outcome.",
		},
		[]string{"outcome"},
	)

	// LastReloadTimestamp records the Unix time of the last snapshot
	// publish, for alerting on a reload controller that's stopped
	// making progress.
	LastReloadTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reload",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successfully published snapshot.",
		},
	)
)

// Handler returns the HTTP handler that serves the registered
// collectors in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
