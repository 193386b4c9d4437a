// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the reconciliation engine.
type Metrics struct {
	// Ingestion
	EventsIngested prometheus.Counter
	DedupHits      prometheus.Counter
	QueueDrops     prometheus.Counter
	InvalidEvents  prometheus.Counter

	// Resolution
	Transitions  *prometheus.CounterVec // label: outcome status
	CASConflicts prometheus.Counter
	PassDuration prometheus.Histogram

	// Sweeper
	CandidatesSwept prometheus.Counter

	// Notification
	NotificationsDelivered prometheus.Counter
	NotificationFailures   prometheus.Counter
}

// NewMetrics registers and returns the engine metrics. Tests pass a fresh
// prometheus.NewRegistry(); the server passes the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_events_ingested_total",
			Help: "Transfer events accepted and stored as new candidates.",
		}),
		DedupHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_events_deduplicated_total",
			Help: "Transfer events matching an already-known signature.",
		}),
		QueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_match_queue_drops_total",
			Help: "Candidates deferred because the match queue was full.",
		}),
		InvalidEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_invalid_events_total",
			Help: "Transfer events rejected at the ingestion boundary.",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recon_transitions_total",
			Help: "Committed candidate state transitions by resulting status.",
		}, []string{"status"}),
		CASConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_cas_conflicts_total",
			Help: "Guarded transition updates lost to a concurrent writer.",
		}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recon_match_pass_duration_seconds",
			Help:    "Wall time of one matching pass including resolution.",
			Buckets: prometheus.DefBuckets,
		}),
		CandidatesSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_candidates_swept_total",
			Help: "Pending candidates force-expired by the sweeper.",
		}),
		NotificationsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_notifications_delivered_total",
			Help: "Outbox rows successfully handed to the delivery transport.",
		}),
		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "recon_notification_failures_total",
			Help: "Delivery attempts that failed; rows stay queued for retry.",
		}),
	}
}
