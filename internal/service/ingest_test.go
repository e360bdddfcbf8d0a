package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/citypulse-systems/event-ingest/internal/encoder"
	"github.com/citypulse-systems/event-ingest/internal/logging"
	"github.com/citypulse-systems/event-ingest/internal/models"
	"github.com/citypulse-systems/event-ingest/internal/storage"
	"github.com/citypulse-systems/event-ingest/internal/validate"
)

// Mock implementations

type mockEncoder struct {
	encodeFunc func(ctx context.Context, text string) ([]float32, error)
	dims       int
	calls      []string
}

func (m *mockEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	m.calls = append(m.calls, text)
	if m.encodeFunc != nil {
		return m.encodeFunc(ctx, text)
	}
	// Default: deterministic unit vector of the configured width
	vec := make([]float32, m.dims)
	vec[0] = 1
	return vec, nil
}

func (m *mockEncoder) Dimensions() int {
	return m.dims
}

type mockStore struct {
	ensureFunc  func(ctx context.Context) error
	indexFunc   func(ctx context.Context, id string, doc interface{}) error
	ensureCalls int
	indexCalls  int
	lastID      string
	lastDoc     interface{}
}

func (m *mockStore) EnsureIndex(ctx context.Context) error {
	m.ensureCalls++
	if m.ensureFunc != nil {
		return m.ensureFunc(ctx)
	}
	return nil
}

func (m *mockStore) IndexEvent(ctx context.Context, id string, doc interface{}) error {
	m.indexCalls++
	m.lastID = id
	m.lastDoc = doc
	if m.indexFunc != nil {
		return m.indexFunc(ctx, id, doc)
	}
	return nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return nil
}

func testRecord() *models.EventRecord {
	return &models.EventRecord{
		ID:            "e1",
		Title:         "Jazz Night",
		Description:   "live music downtown",
		StartTime:     time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC),
		Location:      &models.Location{Name: "Blue Note"},
		OrganizerInfo: &models.OrganizerInfo{Name: "City Arts"},
		Signature:     "0xabc",
	}
}

func newTestService(enc encoder.Encoder, store storage.Store) *IngestService {
	return NewIngestService(enc, store, logging.Default())
}

func TestIngestSuccess(t *testing.T) {
	enc := &mockEncoder{dims: 768}
	store := &mockStore{}
	svc := newTestService(enc, store)

	result, err := svc.Ingest(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(result.VectorEmbedding) != 768 {
		t.Errorf("embedding length = %d, want 768", len(result.VectorEmbedding))
	}

	var sum float64
	for _, x := range result.VectorEmbedding {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("embedding norm = %f, want 1.0", math.Sqrt(sum))
	}

	if store.lastID != "e1" {
		t.Errorf("indexed id = %q, want e1", store.lastID)
	}
	if store.ensureCalls != 1 || store.indexCalls != 1 {
		t.Errorf("ensureCalls = %d indexCalls = %d, want 1 and 1",
			store.ensureCalls, store.indexCalls)
	}
}

func TestIngestEmbedsTitleAndDescriptionOnly(t *testing.T) {
	enc := &mockEncoder{dims: 4}
	store := &mockStore{}
	svc := newTestService(enc, store)

	if _, err := svc.Ingest(context.Background(), testRecord()); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(enc.calls) != 1 {
		t.Fatalf("encoder called %d times, want 1", len(enc.calls))
	}
	if enc.calls[0] != "Jazz Night live music downtown" {
		t.Errorf("embedded text = %q, want title and description joined", enc.calls[0])
	}
}

func TestIngestValidationFailure(t *testing.T) {
	enc := &mockEncoder{dims: 768}
	store := &mockStore{}
	svc := newTestService(enc, store)

	record := testRecord()
	record.Title = ""

	_, err := svc.Ingest(context.Background(), record)
	var errs validate.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("error = %v, want validate.Errors", err)
	}

	if len(enc.calls) != 0 {
		t.Error("encoder must not run for invalid records")
	}
	if store.ensureCalls != 0 || store.indexCalls != 0 {
		t.Error("store must not be touched for invalid records")
	}
}

func TestIngestEncoderFailureDegrades(t *testing.T) {
	enc := &mockEncoder{
		dims: 768,
		encodeFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, &encoder.InferenceError{Err: errors.New("session crashed")}
		},
	}
	store := &mockStore{}
	svc := newTestService(enc, store)

	result, err := svc.Ingest(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Ingest() error = %v, encoder failure must not fail the request", err)
	}

	if result.VectorEmbedding != nil {
		t.Error("embedding should be nil after encoder failure")
	}
	if store.indexCalls != 1 {
		t.Error("document should still be indexed without a vector")
	}
}

func TestIngestNilEncoderDegrades(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(nil, store)

	result, err := svc.Ingest(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Ingest() error = %v, missing encoder must not fail the request", err)
	}
	if result.VectorEmbedding != nil {
		t.Error("embedding should be nil when no encoder is loaded")
	}
	if store.indexCalls != 1 {
		t.Error("document should still be indexed")
	}
}

func TestIngestSchemaFailureFatal(t *testing.T) {
	enc := &mockEncoder{dims: 768}
	store := &mockStore{
		ensureFunc: func(ctx context.Context) error {
			return &storage.SchemaError{Err: errors.New("mapping rejected")}
		},
	}
	svc := newTestService(enc, store)

	_, err := svc.Ingest(context.Background(), testRecord())
	var schemaErr *storage.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want *storage.SchemaError", err)
	}
	if store.indexCalls != 0 {
		t.Error("upsert must not run when the schema cannot be ensured")
	}
}

func TestIngestStoreUnavailableFatal(t *testing.T) {
	enc := &mockEncoder{dims: 768}
	store := &mockStore{
		ensureFunc: func(ctx context.Context) error {
			return storage.ErrUnavailable
		},
	}
	svc := newTestService(enc, store)

	_, err := svc.Ingest(context.Background(), testRecord())
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestIngestWriteFailureFatal(t *testing.T) {
	enc := &mockEncoder{dims: 768}
	store := &mockStore{
		indexFunc: func(ctx context.Context, id string, doc interface{}) error {
			return &storage.WriteError{ID: id, Err: errors.New("shard failure")}
		},
	}
	svc := newTestService(enc, store)

	_, err := svc.Ingest(context.Background(), testRecord())
	var writeErr *storage.WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("error = %v, want *storage.WriteError", err)
	}
	if writeErr.ID != "e1" {
		t.Errorf("WriteError.ID = %q, want e1", writeErr.ID)
	}
}

func TestIngestDocumentOmitsNilEmbedding(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(nil, store)

	if _, err := svc.Ingest(context.Background(), testRecord()); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	// Document() applies the omit-null policy; spot check through JSON.
	data, err := json.Marshal(store.lastDoc)
	if err != nil {
		t.Fatalf("marshal stored doc: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal stored doc: %v", err)
	}
	if _, present := doc["vector_embedding"]; present {
		t.Error("stored document must omit the missing embedding")
	}
}
