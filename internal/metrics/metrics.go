// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the Sync Job Manager's prometheus counters and
// histograms directly through prometheus/client_golang, grounded on the
// teacher's pkg/metric.Metrics (which wrapped client_golang for
// auction/DA counters) but retargeted to sync-run counters and talking to
// client_golang directly rather than through a lux-specific indirection
// layer (see DESIGN.md).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the sync pipeline records to. Register it
// once against a prometheus.Registerer at process startup.
type Metrics struct {
	SyncsStarted    *prometheus.CounterVec
	SyncsCompleted  *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	DetectionsFound prometheus.Counter
}

// New constructs collectors but does not register them.
func New() *Metrics {
	return &Metrics{
		SyncsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reimburse_syncs_started_total",
			Help: "SyncRuns started, labeled by sellerId.",
		}, []string{"seller_id"}),
		SyncsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reimburse_syncs_completed_total",
			Help: "SyncRuns that reached a terminal state, labeled by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reimburse_sync_stage_duration_seconds",
			Help:    "Wall time spent in each SyncRun stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		DetectionsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reimburse_detections_found_total",
			Help: "DetectionResults produced across all SyncRuns.",
		}),
	}
}

// MustRegister registers every collector against reg, panicking on
// duplicate registration (mirrors prometheus.MustRegister's own contract).
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.SyncsStarted, m.SyncsCompleted, m.StageDuration, m.DetectionsFound)
}
