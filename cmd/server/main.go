package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"managehub/internal/api"
	"managehub/internal/config"
	"managehub/internal/db"
	"managehub/pkg/board"
)

func main() {
	configPath := flag.String("config", "", "config file (default .managehub/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := db.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer stores.Close()

	// Ensure tables exist
	if err := stores.EnsureTables(ctx); err != nil {
		logger.Fatalf("ensure tables: %v", err)
	}

	refs, closeRefs := stores.References(ctx, cfg.Redis, logger)
	defer closeRefs()

	b := board.New(stores.Tasks,
		board.WithReferences(refs),
		board.WithRecorder(stores.Activity),
		board.WithLogger(logger),
		board.WithTimeout(cfg.Board.RequestTimeout),
		board.WithSource("api"),
	)
	// A failed initial load leaves an empty board; POST /api/board/reload retries.
	if err := b.Init(ctx); err != nil {
		logger.WithError(err).Warn("initial board load failed")
	}

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.New(b, stores.Tasks, stores.Activity, api.Options{
			Logger: logger,
			WebDir: cfg.Server.WebDir,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("shutdown")
		}
	}()

	logger.WithFields(log.Fields{
		"addr":   cfg.Server.Addr,
		"driver": stores.Driver,
	}).Info("managehub listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("listen: %v", err)
	}
}
