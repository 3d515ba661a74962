// Command marketdata runs the Ingestion Workers (C6): it polls Binance
// REST for klines and order book depth on a per-symbol schedule, persists
// every sample to the Order State Store's market-data tables, and publishes
// each write to the Pub/Sub Bus for the Fan-out Hub to pick up.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkora-dex/backend/internal/bus"
	"github.com/linkora-dex/backend/internal/config"
	"github.com/linkora-dex/backend/internal/ingestion"
	"github.com/linkora-dex/backend/internal/metrics"
	"github.com/linkora-dex/backend/internal/orderstore"
)

func main() {
	cfg := config.Load()

	store, err := orderstore.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("[marketdata] orderstore.Open: %v", err)
	}
	defer store.Close()

	redisBus, err := bus.New(cfg.RedisAddr(), "", 0)
	if err != nil {
		log.Fatalf("[marketdata] bus.New: %v", err)
	}
	defer redisBus.Close()

	metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	sqlDB, err := store.DB().DB()
	if err != nil {
		log.Fatalf("[marketdata] underlying sql.DB: %v", err)
	}
	health.StartLivenessChecker(context.Background(), redisBus.Client(), sqlDB, 15*time.Second)

	metricsSrv := metrics.NewServer(":9101", health)
	metricsSrv.Start()

	sup := ingestion.NewSupervisor(ingestion.Config{
		BaseURL: cfg.BinanceBaseURL,

		Symbols:          cfg.Symbols,
		StartEpochMs:     cfg.KlinesStartEpochMs,
		BatchSize:        cfg.BatchSize,
		RetryDelay:       cfg.KlinesRetryDelay,
		MaxRetries:       cfg.KlinesMaxRetries,
		RealtimeInterval: cfg.KlinesRealtimeInterval,

		OrderbookSymbols:        cfg.OrderbookSymbols,
		OrderbookLevels:         cfg.OrderbookLevels,
		OrderbookUpdateInterval: cfg.OrderbookUpdateInterval,
		OrderbookRetryDelay:     cfg.OrderbookRetryDelay,
		OrderbookMaxRetries:     cfg.OrderbookMaxRetries,
	}, store, redisBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Println("[marketdata] shutdown signal received")
	case <-done:
		log.Println("[marketdata] supervisor exited on its own")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Println("[marketdata] supervisor did not stop in time, exiting anyway")
	}

	log.Println("[marketdata] shutdown complete")
}
