package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citypulse-systems/event-ingest/internal/handlers"
	"github.com/citypulse-systems/event-ingest/internal/middleware"
)

// NewRouter constructs a ServeMux with the ingest API routes registered.
func NewRouter(h *handlers.EventHandler) http.Handler {
	mux := http.NewServeMux()

	// Ingestion
	mux.HandleFunc("/events", h.HandleCreate)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
