// OpenRecommend - Hybrid Content Recommendation Service
// Copyright 2026 Qoobot Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/qoobot/openrecommend

// Package metrics provides Prometheus instrumentation for the
// recommendation pipeline: request throughput, strategy fan-out behavior,
// cache efficiency, and background job progress.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Recommendation engine metrics.

	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total recommendation requests by recommend type and content type",
		},
		[]string{"recommend_type", "content_type"},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"recommend_type"},
	)

	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_strategy_duration_seconds",
			Help:    "Per-strategy candidate generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	StrategyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_strategy_failures_total",
			Help: "Strategies that errored or panicked and were dropped from fusion",
		},
		[]string{"strategy", "reason"}, // reason: error, panic
	)

	// Cache metrics.

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by key namespace",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by key namespace",
		},
		[]string{"namespace"},
	)

	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_breaker_open",
			Help: "1 when the cache circuit breaker is open, 0 otherwise",
		},
	)

	// Profile metrics.

	ProfileRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_rebuilds_total",
			Help: "User profile rebuilds by trigger",
		},
		[]string{"trigger"}, // behavior, scheduled, manual
	)

	ProfileRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "profile_rebuild_duration_seconds",
			Help:    "Single profile rebuild latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Behavior ingestion metrics.

	BehaviorsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "behaviors_recorded_total",
			Help: "Interaction events ingested by behavior type",
		},
		[]string{"behavior_type"},
	)

	// Background job metrics.

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Background job runs by job name and outcome",
		},
		[]string{"job", "outcome"}, // outcome: ok, error
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Background job run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"job"},
	)

	// HTTP metrics.

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one served HTTP request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveStrategy records one strategy run.
func ObserveStrategy(strategy string, elapsed time.Duration) {
	StrategyDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
