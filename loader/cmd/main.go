package main

import (
	"consultant/config"
	"consultant/loader"
	"consultant/model"
	"consultant/service"
	"consultant/store"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Builds the persistent index ahead of time so the server starts without
// embedding anything. Only the postgres store outlives the process.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.Store.Type != "postgres" {
		logger.Error("indexing ahead of time needs VECTOR_STORE=postgres", "store", cfg.Store.Type)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	docs, err := loader.New(loader.Config{
		ChunkSize:     cfg.Knowledge.ChunkSize,
		ChunkOverlap:  cfg.Knowledge.ChunkOverlap,
		PDFCropTop:    cfg.Knowledge.PDFCropTop,
		PDFCropBottom: cfg.Knowledge.PDFCropBottom,
	}, logger).Load(ctx, cfg.Knowledge.Paths)
	if err != nil {
		return err
	}

	embedder, err := model.NewEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}

	pool, err := store.NewPostgresStore(ctx, cfg.Store.PostgresDSN(), logger)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("closing database connection pool...")
		if err := pool.Close(); err != nil {
			logger.Error("closing pool", "error", err)
		}
	}()

	ix, err := service.NewIndexer(ctx, pool, embedder, logger)
	if err != nil {
		return err
	}
	stats, err := ix.Index(ctx, docs)
	if err != nil {
		return err
	}
	logger.Info("index is up to date",
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"embedded", stats.Embedded,
		"fingerprint", ix.Fingerprint(),
	)
	return nil
}
