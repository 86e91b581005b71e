// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestRunsTotal tracks ingestion runs by kind, strategy and status
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs",
		},
		[]string{"kind", "strategy", "status"},
	)

	// IngestRowsTotal tracks rows read by outcome (built, skipped, dropped, repaired)
	IngestRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Total number of rows read by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// IngestDuration tracks ingestion run duration in seconds
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	// WriterBatchesTotal tracks batch writes by status (ok, fallback, failed)
	WriterBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "batches_total",
			Help:      "Total number of batches written by status",
		},
		[]string{"kind", "status"},
	)

	// WriterRetriesTotal tracks retried remote calls
	WriterRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "retries_total",
			Help:      "Total number of retried remote writes",
		},
		[]string{"kind", "granularity"},
	)

	// WriterFailedRecordsTotal tracks records that could not be written at all
	WriterFailedRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "failed_records_total",
			Help:      "Total number of records that failed even when written one by one",
		},
		[]string{"kind"},
	)

	// WriterBatchDuration tracks a batch write including retries and fallback
	WriterBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "writer",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch writes in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// SyncOperationsTotal tracks orchestrator operations by status
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Total number of sync operations by status",
		},
		[]string{"kind", "operation", "status"},
	)

	// SyncReadSourceTotal tracks where read-all was served from
	SyncReadSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "sync",
			Name:      "read_source_total",
			Help:      "Total number of read-all calls by the source that served them",
		},
		[]string{"kind", "source"},
	)

	// CacheOperationsTotal tracks cache snapshot reads and writes
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total number of cache snapshot operations",
		},
		[]string{"driver", "operation", "status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// ArchiveUploadsTotal tracks archived raw uploads
	ArchiveUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "archive",
			Name:      "uploads_total",
			Help:      "Total number of archived raw uploads",
		},
		[]string{"driver", "status"},
	)
)
