// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health provides composable health metrics and the HTTP
// handler which exposes them as probe endpoints.
package health

import (
	"context"
	"net/http"
	"sync"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc is a func adapter for the Metric interface.
type MetricFunc func(context.Context) bool

// Healthy implements the Metric interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary is a Metric that is either healthy or not. The zero value
// is unhealthy; servers mark it healthy once they are serving.
type Binary struct {
	mu      sync.Mutex
	healthy bool
}

// Set marks the metric healthy or unhealthy.
func (m *Binary) Set(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
}

// Healthy implements the Metric interface.
func (m *Binary) Healthy(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// And joins metrics so the result is healthy only when every metric
// is healthy.
func And(metrics ...Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		for _, m := range metrics {
			if !m.Healthy(ctx) {
				return false
			}
		}
		return true
	})
}

// Or joins metrics so the result is healthy when any metric is
// healthy.
func Or(metrics ...Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		for _, m := range metrics {
			if m.Healthy(ctx) {
				return true
			}
		}
		return false
	})
}

// Not negates a metric.
func Not(m Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		return !m.Healthy(ctx)
	})
}

// NewHandler exposes a metric as a probe endpoint. It responds 200
// when the metric is healthy and 503 when it is not.
func NewHandler(m Metric) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Healthy(r.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
