// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exports librarian's runtime counters as Prometheus
// metrics. It is optional: every Record* method is safe to call on a nil
// *Metrics, so components take a *Metrics field and skip instrumentation
// entirely when the caller never wired one.
package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for the governor's budget counters and the
// query engine's retrieval behavior.
type Metrics struct {
	registry prometheus.Registerer

	tokensTotal         *prometheus.CounterVec
	strategyTransitions *prometheus.CounterVec
	queryLatency        prometheus.Histogram
	retrievalHits       *prometheus.CounterVec
}

// NewMetrics registers and returns a Metrics bound to registry. A nil
// registry uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: registry,
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "librarian",
			Subsystem: "governor",
			Name:      "tokens_total",
			Help:      "Tokens recorded by the governor, by phase.",
		}, []string{"phase"}),
		strategyTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "librarian",
			Subsystem: "governor",
			Name:      "strategy_transitions_total",
			Help:      "Governor strategy recommendations, by strategy.",
		}, []string{"strategy"}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "librarian",
			Subsystem: "query",
			Name:      "latency_seconds",
			Help:      "End-to-end Engine.Query latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "librarian",
			Subsystem: "query",
			Name:      "retrieval_hits_total",
			Help:      "Candidates returned per retrieval path.",
		}, []string{"path"}),
	}

	for _, c := range []prometheus.Collector{m.tokensTotal, m.strategyTransitions, m.queryLatency, m.retrievalHits} {
		if err := registry.Register(c); err != nil {
			// Re-registering the same collector (e.g. a second Manager in
			// the same process during tests) is expected and harmless;
			// any other registration error means the caller's registry is
			// misconfigured and deserves a panic, not silent metrics loss.
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

// RecordTokens adds n tokens to phase's counter.
func (m *Metrics) RecordTokens(phase string, n int64) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues(phase).Add(float64(n))
}

// RecordStrategy increments the counter for one governor recommendation.
func (m *Metrics) RecordStrategy(strategy string) {
	if m == nil {
		return
	}
	m.strategyTransitions.WithLabelValues(strategy).Inc()
}

// RecordQueryLatency observes one Engine.Query call's wall-clock duration.
func (m *Metrics) RecordQueryLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.queryLatency.Observe(d.Seconds())
}

// RecordRetrievalHit increments the hit counter for a retrieval path
// ("structural" or "semantic").
func (m *Metrics) RecordRetrievalHit(path string) {
	if m == nil {
		return
	}
	m.retrievalHits.WithLabelValues(path).Inc()
}
