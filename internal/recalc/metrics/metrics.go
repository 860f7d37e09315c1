// Package metrics exposes Prometheus metrics for the recalculation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the recalculation engine's Prometheus collectors.
type Metrics struct {
	RunsTotal         prometheus.Counter
	ItemsClaimed      prometheus.Counter
	ItemsSucceeded    prometheus.Counter
	ItemsFailed       prometheus.Counter
	PartitionTimeouts prometheus.Counter
	NotificationsSent prometheus.Counter

	CertificateDecisions *prometheus.CounterVec

	RunDuration       prometheus.Histogram
	PartitionDuration prometheus.Histogram
}

// New creates and registers all recalculation metrics on the default
// registry.
func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "immuna_recalc_runs_total",
			Help: "Total number of recalculation runs started.",
		}),
		ItemsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "immuna_recalc_items_claimed_total",
			Help: "Total queue items claimed for processing.",
		}),
		ItemsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "immuna_recalc_items_succeeded_total",
			Help: "Total queue items processed successfully.",
		}),
		ItemsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "immuna_recalc_items_failed_total",
			Help: "Total queue items whose processing failed.",
		}),
		PartitionTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "immuna_recalc_partition_timeouts_total",
			Help: "Total partition waits abandoned due to timeout.",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "immuna_notifications_sent_total",
			Help: "Total booster-unlocked notifications dispatched.",
		}),
		CertificateDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "immuna_certificate_decisions_total",
			Help: "Certificate impact classifications by outcome.",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "immuna_recalc_run_duration_seconds",
			Help:    "Wall time of a recalculation run.",
			Buckets: prometheus.DefBuckets,
		}),
		PartitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "immuna_recalc_partition_duration_seconds",
			Help:    "Wall time of one partition within a run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
