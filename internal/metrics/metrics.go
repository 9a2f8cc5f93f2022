// Package metrics holds the Prometheus collectors for proctoring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "edumanage"

var (
	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proctoring",
		Name:      "violations_total",
		Help:      "Integrity records emitted, by violation type.",
	}, []string{"type"})

	SnapshotFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proctoring",
		Name:      "snapshot_failures_total",
		Help:      "Webcam snapshots that could not be captured or uploaded.",
	})

	AutoSubmitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proctoring",
		Name:      "tab_switch_breaches_total",
		Help:      "Sessions whose tab-switch budget was exhausted.",
	})

	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exam",
		Name:      "submissions_total",
		Help:      "Completed attempt submissions, by trigger.",
	}, []string{"reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "exam",
		Name:      "active_sessions",
		Help:      "Proctored sessions currently connected.",
	})

	ExtensionsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exam",
		Name:      "extension_minutes_applied_total",
		Help:      "Extension minutes added to running countdowns.",
	})
)
