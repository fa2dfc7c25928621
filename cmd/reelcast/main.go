package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yangwenmai/reelcast/internal/app"
	"github.com/yangwenmai/reelcast/internal/config"
	"github.com/yangwenmai/reelcast/internal/engine"
	"github.com/yangwenmai/reelcast/internal/store"
	"github.com/yangwenmai/reelcast/internal/worker"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger(os.Stderr))
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	s, err := store.New(db)
	if err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "init store: %v\n", err)
		os.Exit(1)
	}

	build := func(ctx context.Context, obs engine.Observer) (worker.Pipeline, func(), error) {
		sink, closeSink, err := app.OpenSink(cfg)
		if err != nil {
			return nil, nil, err
		}
		p, err := app.NewPipeline(ctx, cfg, sink, s, obs)
		if err != nil {
			closeSink()
			return nil, nil, err
		}
		return p, closeSink, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cliApp := newCLIApp(s, cfg, build)
	err = cliApp.RunContext(ctx, os.Args)
	stop()
	db.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
