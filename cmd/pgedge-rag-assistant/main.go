//-------------------------------------------------------------------------
//
// pgEdge RAG Assistant
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pgEdge/pgedge-rag-assistant/internal/config"
	"github.com/pgEdge/pgedge-rag-assistant/internal/conversation"
	"github.com/pgEdge/pgedge-rag-assistant/internal/ingest"
	"github.com/pgEdge/pgedge-rag-assistant/internal/logging"
	"github.com/pgEdge/pgedge-rag-assistant/internal/metrics"
	"github.com/pgEdge/pgedge-rag-assistant/internal/pipeline"
	"github.com/pgEdge/pgedge-rag-assistant/internal/server"
	"github.com/pgEdge/pgedge-rag-assistant/internal/tracing"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-alpha1"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help message")
		showOpenAPI = flag.Bool("openapi", false, "Output OpenAPI specification and exit")
		configPath  = flag.String("config", "", "Path to configuration file")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `pgEdge RAG Assistant - document question answering with web search fallback

Usage:
    pgedge-rag-assistant [options]

Options:
    -config string
        Path to configuration file. If not specified, searches:
        1. /etc/pgedge/pgedge-rag-assistant.yaml
        2. pgedge-rag-assistant.yaml (in binary directory)
        Without a file the built-in defaults and environment are used.

    -openapi
        Output OpenAPI v3 specification as JSON and exit

    -version
        Show version information and exit

    -help
        Show this help message and exit

Environment:
    OPENAI_API_KEY     Enables the live backends; without it the assistant
                       runs in mock mode
    USE_MOCK_RAG=true  Forces mock mode
`)
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("pgEdge RAG Assistant\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Build Time: %s\n", buildTime)
		fmt.Printf("  Git Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	if *showOpenAPI {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(server.BuildOpenAPISpec()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode OpenAPI spec: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	err = run(cfg, logger)
	_ = closer.Close()
	if err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	pm, err := pipeline.NewManager(ctx, pipeline.ManagerConfig{
		Config:  cfg,
		Metrics: collector,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline manager: %w", err)
	}
	defer pm.Close()

	info := pm.Info()
	logger.Info("pipeline ready",
		"mock_mode", info.MockMode,
		"llm", info.LLMModel,
		"embedding", info.EmbeddingModel,
		"corpus", info.CorpusBackend)

	store, err := conversation.Open(cfg.Conversations, logger)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close conversation store", "error", err)
		}
	}()

	docs := ingest.NewService(ingest.Config{
		Corpus:       pm.Store(),
		Documents:    store,
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		BatchSize:    cfg.Corpus.BatchSize,
		Metrics:      collector,
		Logger:       logger,
	})

	srv := server.New(cfg, server.Options{
		Pipeline:      pm,
		Conversations: store,
		Documents:     docs,
		Metrics:       collector,
		Logger:        logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")

		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(sctx)
	}
}
