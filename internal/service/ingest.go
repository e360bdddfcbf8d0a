// Package service orchestrates the ingest pipeline:
// validate -> embed -> ensure schema -> index.
package service

import (
	"context"
	"time"

	"github.com/citypulse-systems/event-ingest/internal/encoder"
	"github.com/citypulse-systems/event-ingest/internal/logging"
	"github.com/citypulse-systems/event-ingest/internal/metrics"
	"github.com/citypulse-systems/event-ingest/internal/models"
	"github.com/citypulse-systems/event-ingest/internal/storage"
	"github.com/citypulse-systems/event-ingest/internal/validate"
)

// IngestService runs each event through the synchronous ingest pipeline.
// Failure handling is deliberately asymmetric: a missing embedding degrades
// the document (still valid for lexical search), while store failures are
// fatal because the store is the sole persistence mechanism.
type IngestService struct {
	encoder encoder.Encoder
	store   storage.Store
	logger  *logging.Logger
}

// NewIngestService wires the pipeline. enc may be nil when the model failed
// to load at startup; ingestion then proceeds without embeddings.
func NewIngestService(enc encoder.Encoder, store storage.Store, logger *logging.Logger) *IngestService {
	return &IngestService{
		encoder: enc,
		store:   store,
		logger:  logger,
	}
}

// Ingest validates record, attaches an embedding when possible, and upserts
// the document into the events index. On success the returned record is the
// finalized document, embedding included (or nil when it was skipped).
//
// Error types surfaced to the caller: validate.Errors for malformed input,
// storage.ErrUnavailable, *storage.SchemaError, and *storage.WriteError for
// write-path failures. Encoder errors are never surfaced.
func (s *IngestService) Ingest(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error) {
	if err := validate.Record(record); err != nil {
		metrics.EventsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	s.embed(ctx, record)

	if err := s.store.EnsureIndex(ctx); err != nil {
		metrics.EventsTotal.WithLabelValues("error").Inc()
		metrics.IndexingErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to ensure events index",
			logging.EventID(record.ID), logging.Error(err))
		return nil, err
	}

	start := time.Now()
	if err := s.store.IndexEvent(ctx, record.ID, record.Document()); err != nil {
		metrics.EventsTotal.WithLabelValues("error").Inc()
		metrics.IndexingErrors.Inc()
		s.logger.ErrorContext(ctx, "failed to index event",
			logging.EventID(record.ID), logging.Error(err))
		return nil, err
	}
	metrics.IndexingDuration.Observe(time.Since(start).Seconds())

	metrics.EventsTotal.WithLabelValues("indexed").Inc()
	s.logger.InfoContext(ctx, "event indexed",
		logging.EventID(record.ID),
		logging.Duration(time.Since(start).Milliseconds()))

	return record, nil
}

// embed attaches the title+description embedding to record. Every failure
// here is non-fatal: the event is indexed without a vector and remains
// searchable lexically.
func (s *IngestService) embed(ctx context.Context, record *models.EventRecord) {
	text := record.EmbeddingText()
	if text == "" {
		metrics.EmbeddingsSkipped.Inc()
		s.logger.WarnContext(ctx, "empty embedding text, skipping embedding",
			logging.EventID(record.ID))
		return
	}

	if s.encoder == nil {
		metrics.EmbeddingFailures.Inc()
		s.logger.WarnContext(ctx, "encoder unavailable, indexing without embedding",
			logging.EventID(record.ID))
		return
	}

	start := time.Now()
	vector, err := s.encoder.Encode(ctx, text)
	if err != nil {
		metrics.EmbeddingFailures.Inc()
		s.logger.WarnContext(ctx, "embedding failed, indexing without embedding",
			logging.EventID(record.ID), logging.Error(err))
		return
	}
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())

	record.VectorEmbedding = vector
}
