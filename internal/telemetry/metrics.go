package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "herald"

// Метрики планировщика.
var (
	SchedulesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedules_created_total",
		Help:      "Schedules created from campaign distribution.",
	})

	SchedulesRescheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedules_rescheduled_total",
		Help:      "Schedules overwritten by reschedule.",
	})

	ScheduleOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_outcomes_total",
		Help:      "Delivery attempts by platform and resulting status.",
	}, []string{"platform", "status"})

	SchedulesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedules_exhausted_total",
		Help:      "Schedules that reached the retry limit.",
	})

	ClaimsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_claims_skipped_total",
		Help:      "Eligible schedules already claimed by another trigger invocation.",
	})

	ClaimsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_claims_expired_total",
		Help:      "Stale PROCESSING claims counted as failed attempts.",
	})

	PublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_duration_seconds",
		Help:      "Publisher call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"platform"})

	TriggerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trigger_duration_seconds",
		Help:      "Duration of one trigger pass.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Метрики драйвера trigger'а и инфраструктуры.
var (
	TriggerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trigger_runs_total",
		Help:      "Trigger invocations by source and result.",
	}, []string{"source", "result"})

	LeaseHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "trigger_lease_held",
		Help:      "1 while this process holds the trigger lease.",
	})

	MQMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mq_messages_published_total",
		Help:      "Messages published to RabbitMQ by routing key and result.",
	}, []string{"routing_key", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled by the API.",
	}, []string{"method", "status"})
)
