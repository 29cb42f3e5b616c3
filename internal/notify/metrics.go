package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// snapshotsAppliedTotal counts feed snapshots applied to stores, by
	// transport.
	snapshotsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_snapshots_applied_total",
			Help: "Total number of feed snapshots applied",
		},
		[]string{"transport"},
	)

	// feedErrorsTotal counts recoverable feed transport errors.
	feedErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_feed_errors_total",
			Help: "Total number of feed transport errors",
		},
		[]string{"transport"},
	)

	// reconcilerWritesTotal counts reconciler backend writes by operation
	// and outcome.
	reconcilerWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_reconciler_writes_total",
			Help: "Total number of reconciler backend writes",
		},
		[]string{"operation", "outcome"},
	)

	// producedTotal counts notifications produced server-side, by type.
	producedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_produced_total",
			Help: "Total number of notifications produced",
		},
		[]string{"type"},
	)
)
