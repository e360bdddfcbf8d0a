package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citypulse-systems/event-ingest/internal/handlers"
	"github.com/citypulse-systems/event-ingest/internal/logging"
	"github.com/citypulse-systems/event-ingest/internal/models"
)

type stubIngester struct{}

func (stubIngester) Ingest(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error) {
	return record, nil
}

type stubStore struct{}

func (stubStore) EnsureIndex(ctx context.Context) error                          { return nil }
func (stubStore) IndexEvent(ctx context.Context, id string, doc interface{}) error { return nil }
func (stubStore) Ping(ctx context.Context) error                                 { return nil }

func testRouter() http.Handler {
	h := handlers.NewEventHandler(stubIngester{}, stubStore{}, true, 1<<20, logging.Default())
	return NewRouter(h)
}

func TestRouterRoutes(t *testing.T) {
	router := testRouter()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/events", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRouterAttachesRequestID(t *testing.T) {
	router := testRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}
