package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	dispatchEngine = "dispatch_engine"

	// Dispatch metrics
	dispatchesTotal = "dispatches_total"
	matchDuration   = "match_duration_seconds"

	// SLA metrics
	slaBreachesTotal = "sla_breaches_total"

	// Notification metrics
	notificationsTotal = "notifications_total"

	// Labels
	outcomeLabel    = "outcome"
	breachTypeLabel = "breach_type"
	levelLabel      = "level"
	channelLabel    = "channel"
	statusLabel     = "status"
)

var dispatchesTotalLabels = []string{
	outcomeLabel,
}

var slaBreachesTotalLabels = []string{
	breachTypeLabel,
	levelLabel,
}

var notificationsTotalLabels = []string{
	channelLabel,
	statusLabel,
}

/**
* Metrics definition
**/
var dispatchesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: dispatchEngine,
		Name:      dispatchesTotal,
		Help:      "number of dispatch attempts by outcome",
	},
	dispatchesTotalLabels,
)

var matchDurationMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: dispatchEngine,
		Name:      matchDuration,
		Help:      "duration of candidate matching runs",
		Buckets:   prometheus.DefBuckets,
	},
)

var slaBreachesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: dispatchEngine,
		Name:      slaBreachesTotal,
		Help:      "number of sla breaches detected by type and escalation level",
	},
	slaBreachesTotalLabels,
)

var notificationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: dispatchEngine,
		Name:      notificationsTotal,
		Help:      "number of notifications emitted by channel and status",
	},
	notificationsTotalLabels,
)

func IncreaseDispatchesTotalMetric(outcome string) {
	labels := prometheus.Labels{
		outcomeLabel: outcome,
	}
	dispatchesTotalMetric.With(labels).Inc()
}

func ObserveMatchDurationMetric(d time.Duration) {
	matchDurationMetric.Observe(d.Seconds())
}

func IncreaseSlaBreachesTotalMetric(breachType, level string) {
	labels := prometheus.Labels{
		breachTypeLabel: breachType,
		levelLabel:      level,
	}
	slaBreachesTotalMetric.With(labels).Inc()
}

func IncreaseNotificationsTotalMetric(channel, status string) {
	labels := prometheus.Labels{
		channelLabel: channel,
		statusLabel:  status,
	}
	notificationsTotalMetric.With(labels).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(dispatchesTotalMetric)
	prometheus.MustRegister(matchDurationMetric)
	prometheus.MustRegister(slaBreachesTotalMetric)
	prometheus.MustRegister(notificationsTotalMetric)
}
