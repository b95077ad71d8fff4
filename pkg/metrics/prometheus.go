package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	RemindersCreated prometheus.Counter
	RemindersDeleted prometheus.Counter
	RemindersSkipped *prometheus.CounterVec
	ReminderFailures *prometheus.CounterVec
	ReconcileTime    prometheus.Histogram
	PollCycles       prometheus.Counter
	PushesSent       prometheus.Counter
	AlarmsDispatched prometheus.Counter
	AlarmsExpired    prometheus.Counter
}

// NewMetrics creates the service metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemindersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_created_total",
			Help:      "The total number of reservation reminders created",
		}),
		RemindersDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_deleted_total",
			Help:      "The total number of reservation reminders deleted",
		}),
		RemindersSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_skipped_total",
			Help:      "Reminders not created, by reason",
		}, []string{"reason"}),
		ReminderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_failures_total",
			Help:      "Swallowed reminder I/O failures, by operation",
		}, []string{"operation"}),
		ReconcileTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time taken by a reminder reconciliation pass",
			Buckets:   prometheus.DefBuckets,
		}),
		PollCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "The total number of upstream poll cycles",
		}),
		PushesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_sent_total",
			Help:      "The total number of reminder push notifications delivered",
		}),
		AlarmsDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_dispatched_total",
			Help:      "The total number of due reminder alarms handed to the push workers",
		}),
		AlarmsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_expired_total",
			Help:      "Reminder alarms found too late to be worth sending",
		}),
	}
}
