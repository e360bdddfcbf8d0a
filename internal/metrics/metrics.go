package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_ingest_events_total",
			Help: "Total number of events received, labelled by outcome",
		},
		[]string{"status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_ingest_event_bytes_total",
			Help: "Total bytes of event payload received",
		},
	)

	// Embedding metrics
	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_ingest_embedding_duration_seconds",
			Help:    "Duration of embedding generation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EmbeddingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_ingest_embedding_failures_total",
			Help: "Total number of failed embedding attempts",
		},
	)

	EmbeddingsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_ingest_embeddings_skipped_total",
			Help: "Total number of events indexed without an embedding",
		},
	)

	// Indexing metrics
	IndexingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_ingest_indexing_duration_seconds",
			Help:    "Duration of document store writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexingErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_ingest_indexing_errors_total",
			Help: "Total number of failed document store writes",
		},
	)
)
