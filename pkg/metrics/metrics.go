package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertsIngested counts ingestion pipeline outcomes (accepted|rejected|error).
	AlertsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldalert_alerts_ingested_total",
			Help: "Total number of inbound alerts by pipeline outcome",
		},
		[]string{"result"},
	)

	// AlertRecordsStored counts durable per-recipient alert records created.
	AlertRecordsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldalert_alert_records_stored_total",
			Help: "Total number of per-recipient alert records persisted",
		},
	)

	// PushAttempts counts push dispatch outcomes (delivered|blocked|skipped|error).
	PushAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldalert_push_attempts_total",
			Help: "Total number of per-recipient push dispatch attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldalert_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
