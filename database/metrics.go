/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptrace/bun"
)

// QueryMetrics is a bun.QueryHook exporting per-operation query counts,
// failures and latency to Prometheus.
type QueryMetrics struct {
	// Queries counts executed queries, labeled by operation (SELECT, INSERT, ...).
	Queries *prometheus.CounterVec

	// Failures counts failed queries, labeled by operation and error kind.
	Failures *prometheus.CounterVec

	// Duration observes query latency in seconds, labeled by operation.
	Duration *prometheus.HistogramVec
}

var _ bun.QueryHook = (*QueryMetrics)(nil)

// NewQueryMetrics creates the query metrics under namespace and registers them
// with reg. A nil reg leaves the metrics unregistered.
func NewQueryMetrics(namespace string, reg prometheus.Registerer) *QueryMetrics {
	factory := promauto.With(reg)
	return &QueryMetrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "queries_total",
			Help:      "Total number of executed database queries",
		}, []string{"operation"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_failures_total",
			Help:      "Total number of failed database queries",
		}, []string{"operation", "kind"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *QueryMetrics) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (m *QueryMetrics) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	op := event.Operation()
	m.Queries.WithLabelValues(op).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(event.StartTime).Seconds())

	if event.Err == nil || errors.Is(event.Err, sql.ErrNoRows) {
		return
	}
	_, kind := IsSqlError(event.Err)
	m.Failures.WithLabelValues(op, kind.String()).Inc()
}
