// Package metrics exposes prometheus counters for check cycles.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "course_tracker"

// Metrics groups the collectors updated by the check cycle.
type Metrics struct {
	CyclesTotal         prometheus.Counter
	CycleDuration       prometheus.Histogram
	QueriesChecked      prometheus.Counter
	QueriesFailed       *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	CoursesBookable     prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Number of completed check cycles.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of check cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueriesChecked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_checked_total",
			Help:      "Tracker queries evaluated.",
		}),
		QueriesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_failed_total",
			Help:      "Tracker queries that could not be evaluated, by reason.",
		}, []string{"reason"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Identity and status transitions, by kind.",
		}, []string{"kind"}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications handed to the notifier.",
		}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notifications the notifier rejected.",
		}),
		CoursesBookable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "courses_bookable",
			Help:      "Tracked courses bookable in the last cycle.",
		}),
	}
}
