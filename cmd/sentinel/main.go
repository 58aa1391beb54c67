package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sentinel/internal/broker"
	"sentinel/internal/config"
	"sentinel/internal/engine"
	"sentinel/internal/httpapi"
	"sentinel/internal/journal"
	"sentinel/internal/util"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("sentinel: %v", err)
	}
}

// run holds the daemon lifecycle so deferred cleanup (journal close) fires on
// every exit path, including engine failure.
func run() error {
	cfgPath := "config/sentinel.yaml"
	if p := os.Getenv("SENTINEL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	b := broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
		cfg.Alpaca.BaseURL, cfg.Alpaca.RateLimitPerMin, logger)

	hub := httpapi.NewHub(logger)
	recorders := journal.Multi{hub}

	var store *journal.SQLite
	if cfg.Storage.SQLitePath != "" {
		store, err = journal.OpenSQLite(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer store.Close()
		recorders = append(recorders, store)
	}

	eng := engine.New(engine.Config{
		StopOffset:    cfg.Engine.StopOffset,
		LimitOffset:   cfg.Engine.LimitOffset,
		PendingBuyTTL: cfg.Engine.PendingBuyTTL.Std(),
		LocateWait:    cfg.Engine.LocateWait.Std(),
		LocatePoll:    cfg.Engine.LocatePoll.Std(),
		ReapInterval:  cfg.Engine.ReapInterval.Std(),
		PositionPoll:  cfg.Engine.PositionPoll.Std(),
	}, b, b, recorders, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go hub.Run(ctx)
	if store != nil {
		go journal.NewArchiver(store, cfg.Storage.DataDir).Run(ctx)
	}

	var js httpapi.JournalStore
	if store != nil {
		js = store
	}
	srv := httpapi.NewServer(eng, js, hub, logger)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Run(ctx, addr); err != nil && ctx.Err() == nil {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("sentinel starting", "broker", b.Name())
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("engine: %w", err)
	}
	logger.Info("sentinel stopped")
	return nil
}
