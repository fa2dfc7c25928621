package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yangwenmai/reelcast/internal/api"
	"github.com/yangwenmai/reelcast/internal/app"
	"github.com/yangwenmai/reelcast/internal/config"
	"github.com/yangwenmai/reelcast/internal/store"
	"github.com/yangwenmai/reelcast/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger(os.Stderr))
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	s, err := store.New(db)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reset stale RUNNING runs from a previous process.
	if n, err := s.ResetStaleRunning(ctx); err != nil {
		slog.Warn("reset stale runs", "error", err)
	} else if n > 0 {
		slog.Info("reset stale RUNNING runs to QUEUED", "count", n)
	}

	sink, closeSink, err := app.OpenSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	pipeline, err := app.NewPipeline(ctx, cfg, sink, s, worker.RecordState(s))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	processor := worker.NewPipelineProcessor(pipeline, s, app.Credentials(cfg), cfg.VoiceProfile, cfg.MaxPosts)
	w := worker.New(s, processor, cfg.WorkerInterval)
	workerDone := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(workerDone)
	}()

	srv := api.New(s, api.WithSink(sink), api.WithCORSOrigin(cfg.CORSOrigin))
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("reelcast server listening", "addr", "http://localhost:"+cfg.Port)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-workerDone
	return nil
}
