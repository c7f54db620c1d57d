package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookJobsProcessed tracks the outcome of every queue pickup
	// Labels allow filtering by result (done/failed) and event type
	WebhookJobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfil_webhook_jobs_total",
		Help: "Total number of webhook jobs processed by the cron worker",
	}, []string{"status", "event_type"})

	// ExportAttempts counts outbound order exports per transport and result
	ExportAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfil_export_attempts_total",
		Help: "Total number of outbound order export attempts",
	}, []string{"status", "transport"})

	// ShipmentsApplied counts inbound shipment updates merged into orders
	ShipmentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfil_shipments_applied_total",
		Help: "Total number of shipment status items applied to orders",
	}, []string{"status"})

	// LabelsFetched counts label downloads triggered by new parcels
	LabelsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfil_labels_fetched_total",
		Help: "Total number of shipment label download attempts",
	}, []string{"status"})

	// BatchDuration measures how long a full worker cycle takes
	// Use this to spot a slow carrier endpoint dragging the whole batch
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfil_batch_duration_seconds",
		Help:    "Duration of a worker batch cycle in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// BatchSize tracks the number of jobs actually claimed per cycle
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfil_batch_size",
		Help:    "Number of webhook jobs claimed per batch",
		Buckets: []float64{1, 5, 10, 20, 50, 100},
	})

	// QueueBacklog is the primary lag indicator: new+failed jobs waiting
	QueueBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fulfil_queue_backlog",
		Help: "Current number of new or failed jobs in the webhook queue",
	})

	// HealthStatus provides a binary 0/1 signal for the event publisher link
	HealthStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fulfil_broker_healthy",
		Help: "Event broker link status (1 for healthy, 0 for down)",
	})
)
