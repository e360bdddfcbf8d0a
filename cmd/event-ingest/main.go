package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citypulse-systems/event-ingest/internal/config"
	"github.com/citypulse-systems/event-ingest/internal/encoder"
	"github.com/citypulse-systems/event-ingest/internal/handlers"
	"github.com/citypulse-systems/event-ingest/internal/logging"
	"github.com/citypulse-systems/event-ingest/internal/server"
	"github.com/citypulse-systems/event-ingest/internal/service"
	"github.com/citypulse-systems/event-ingest/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("event-ingest"))
	logging.SetDefault(logger)

	slog.Info("Starting event-ingest service",
		slog.Int("port", cfg.Server.Port),
		slog.String("opensearch_url", cfg.OpenSearch.URL),
		slog.String("index_name", cfg.OpenSearch.IndexName),
		slog.String("model_dir", cfg.Encoder.ModelDir),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Load the text encoder. A load failure is non-fatal: events are still
	// ingested, just without embeddings, and readiness reports the state.
	var textEncoder encoder.Encoder
	onnxEncoder, err := encoder.NewONNXEncoder(encoder.Config{
		ModelDir:         cfg.Encoder.ModelDir,
		LibraryPath:      cfg.Encoder.LibraryPath,
		MaxSeqLength:     cfg.Encoder.MaxSeqLength,
		VectorDimensions: cfg.Encoder.VectorDimensions,
	})
	if err != nil {
		slog.Warn("Failed to load ONNX encoder, events will be indexed without embeddings",
			slog.String("error", err.Error()))
	} else {
		textEncoder = onnxEncoder
		defer onnxEncoder.Close()
		slog.Info("ONNX encoder loaded",
			slog.Int("max_seq_length", cfg.Encoder.MaxSeqLength),
			slog.Int("vector_dimensions", cfg.Encoder.VectorDimensions),
		)
	}

	store, err := storage.NewClient(storage.Config{
		URL:              cfg.OpenSearch.URL,
		Username:         cfg.OpenSearch.Username,
		Password:         cfg.OpenSearch.Password,
		TLSSkipVerify:    cfg.OpenSearch.TLSSkipVerify,
		IndexName:        cfg.OpenSearch.IndexName,
		RequestTimeout:   cfg.OpenSearch.RequestTimeout,
		MaxRetries:       cfg.OpenSearch.MaxRetries,
		VectorDimensions: cfg.Encoder.VectorDimensions,
	})
	if err != nil {
		log.Fatalf("Failed to create OpenSearch client: %v", err)
	}

	// Provision the index up front when the store is reachable. Failure is
	// deferred, not fatal: EnsureIndex runs again on each ingest.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.OpenSearch.RequestTimeout)
	if err := store.EnsureIndex(ctx); err != nil {
		slog.Warn("Failed to provision events index at startup",
			slog.String("error", err.Error()))
	} else {
		slog.Info("Events index ready", logging.Index(cfg.OpenSearch.IndexName))
	}
	cancel()

	ingestService := service.NewIngestService(textEncoder, store, logger)
	handler := handlers.NewEventHandler(ingestService, store, textEncoder != nil, cfg.Server.MaxBodySize, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("event-ingest listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Server stopped")
}
