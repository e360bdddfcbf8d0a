package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/citypulse-systems/event-ingest/internal/httputil"
	"github.com/citypulse-systems/event-ingest/internal/logging"
	"github.com/citypulse-systems/event-ingest/internal/metrics"
	"github.com/citypulse-systems/event-ingest/internal/models"
	"github.com/citypulse-systems/event-ingest/internal/storage"
	"github.com/citypulse-systems/event-ingest/internal/validate"
)

// Ingester is the pipeline surface the handler depends on.
type Ingester interface {
	Ingest(ctx context.Context, record *models.EventRecord) (*models.EventRecord, error)
}

// EventHandler exposes the ingest pipeline over HTTP.
type EventHandler struct {
	ingester      Ingester
	store         storage.Store
	encoderLoaded bool
	maxBodySize   int64
	logger        *logging.Logger
}

func NewEventHandler(ingester Ingester, store storage.Store, encoderLoaded bool, maxBodySize int64, logger *logging.Logger) *EventHandler {
	return &EventHandler{
		ingester:      ingester,
		store:         store,
		encoderLoaded: encoderLoaded,
		maxBodySize:   maxBodySize,
		logger:        logger,
	}
}

// HandleCreate ingests one event. The body is either the event JSON object
// directly, or multipart/form-data with the JSON in an "event" field plus an
// optional "image" file part (accepted and logged only; attachment handling
// is not implemented).
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	record, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.ingester.Ingest(ctx, record)
	if err != nil {
		h.writeIngestError(ctx, w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *EventHandler) decodeRecord(w http.ResponseWriter, r *http.Request) (*models.EventRecord, bool) {
	contentType := r.Header.Get("Content-Type")

	var payload []byte
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxBodySize); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return nil, false
		}
		eventJSON := r.FormValue("event")
		if eventJSON == "" {
			httputil.WriteError(w, http.StatusBadRequest, "missing event form field")
			return nil, false
		}
		payload = []byte(eventJSON)

		if file, header, err := r.FormFile("image"); err == nil {
			// Attachment processing is not implemented; accept and log.
			h.logger.InfoContext(r.Context(), "received event image, ignoring",
				"filename", header.Filename, "size", header.Size)
			file.Close()
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
			return nil, false
		}
		defer r.Body.Close()
		payload = body
	}

	if len(payload) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "empty request body")
		return nil, false
	}
	metrics.EventBytesTotal.Add(float64(len(payload)))

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()

	var record models.EventRecord
	if err := decoder.Decode(&record); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid event JSON: "+err.Error())
		return nil, false
	}

	h.logger.DebugContext(r.Context(), "event received",
		logging.EventID(record.ID), logging.IP(clientIP(r)))

	return &record, true
}

func (h *EventHandler) writeIngestError(ctx context.Context, w http.ResponseWriter, err error) {
	var violations validate.Errors
	if errors.As(err, &violations) {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "event validation failed",
			"violations": violations,
		})
		return
	}

	if errors.Is(err, storage.ErrUnavailable) {
		httputil.WriteError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}

	var schemaErr *storage.SchemaError
	if errors.As(err, &schemaErr) {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to provision events index")
		return
	}

	var writeErr *storage.WriteError
	if errors.As(err, &writeErr) {
		httputil.WriteError(w, http.StatusInternalServerError, "error storing event data: "+writeErr.Err.Error())
		return
	}

	h.logger.ErrorContext(ctx, "unexpected ingest failure", logging.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "internal error")
}

// Health is the liveness probe.
func (h *EventHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports per-component readiness: encoder loaded and store reachable.
// The store gates readiness; a missing encoder only degrades ingestion.
func (h *EventHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	encoderStatus := "loaded"
	if !h.encoderLoaded {
		encoderStatus = "unavailable"
	}

	storeStatus := "connected"
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		storeStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	httputil.WriteJSON(w, status, map[string]interface{}{
		"status": map[string]string{
			"encoder":        encoderStatus,
			"document_store": storeStatus,
		},
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
