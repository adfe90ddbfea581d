package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/recallmesh/recallmesh/internal/api"
	"github.com/recallmesh/recallmesh/internal/config"
	"github.com/recallmesh/recallmesh/internal/graph"
	"github.com/recallmesh/recallmesh/internal/ingest"
	"github.com/recallmesh/recallmesh/internal/memory"
	"github.com/recallmesh/recallmesh/internal/provider"
	"github.com/recallmesh/recallmesh/internal/search"
	"github.com/recallmesh/recallmesh/internal/store"
	"github.com/recallmesh/recallmesh/internal/vectorstore"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the recallmesh HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newLogger(level string) *log.Logger {
	opts := log.Options{ReportTimestamp: true, Prefix: "recallmesh"}
	logger := log.NewWithOptions(os.Stderr, opts)
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	owners := store.NewOwnerStore(db)
	memories := store.NewMemoryStore(db)
	snapshots := store.NewSnapshotStore(db)
	relations := store.NewRelationStore(db)
	queue := store.NewJobQueue(db)

	qdrant := vectorstore.NewClient(cfg.QdrantURL, cfg.EmbeddingDim)
	summarizer := provider.NewClaudeSummarizer(cfg.AnthropicAPIKey, cfg.SummaryModel)
	embedder := provider.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := qdrant.HealthCheck(ctx); err != nil {
		logger.Warn("vector index not available at startup, will retry on first use", "error", err)
	} else if err := qdrant.EnsureCollection(ctx); err != nil {
		logger.Warn("failed to ensure vector collection", "error", err)
	}

	blender := search.NewBlender(memories, embedder, qdrant, logger)
	builder := graph.NewBuilder(graph.DefaultConfig(), memories, relations, embedder, qdrant, nil, logger)
	svc := memory.NewService(owners, memories, relations, queue, blender, builder, qdrant, logger)

	pipeline := ingest.NewPipeline(memories, snapshots, summarizer, embedder,
		qdrant, builder, ingest.DefaultBackoff(), logger)
	pool := ingest.NewPool(queue, pipeline, cfg.Workers, logger)
	go pool.Run(ctx)

	go graph.RunPeriodicCleanup(ctx, builder,
		time.Duration(cfg.CleanupIntervalHours)*time.Hour, logger)

	router := api.NewRouter(db, svc, qdrant, cfg.APIKey, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("recallmesh server starting", "addr", addr, "workers", cfg.Workers)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
