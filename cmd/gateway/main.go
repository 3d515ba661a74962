// Command gateway runs the WebSocket Fan-out Hub (C10) and the Query API
// (C9's read path) in one process, sharing a single Registry so a cold
// GET /candles or GET /price read always hydrates the same live aggregator
// a WebSocket subscriber would see, per SPEC_FULL.md §9.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkora-dex/backend/internal/bus"
	"github.com/linkora-dex/backend/internal/config"
	"github.com/linkora-dex/backend/internal/gateway"
	"github.com/linkora-dex/backend/internal/liveness"
	"github.com/linkora-dex/backend/internal/metrics"
	"github.com/linkora-dex/backend/internal/orderstore"
	"github.com/linkora-dex/backend/internal/queryapi"
	"github.com/linkora-dex/backend/internal/registry"
)

func main() {
	cfg := config.Load()

	store, err := orderstore.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("[gateway] orderstore.Open: %v", err)
	}
	defer store.Close()

	redisBus, err := bus.New(cfg.RedisAddr(), "", 0)
	if err != nil {
		log.Fatalf("[gateway] bus.New: %v", err)
	}
	defer redisBus.Close()

	metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	sqlDB, err := store.DB().DB()
	if err != nil {
		log.Fatalf("[gateway] underlying sql.DB: %v", err)
	}
	health.StartLivenessChecker(context.Background(), redisBus.Client(), sqlDB, 15*time.Second)

	metricsSrv := metrics.NewServer(":9102", health)
	metricsSrv.Start()

	reg := registry.New()
	hub := gateway.NewHub(reg)
	wsHandler := gateway.NewHandler(hub, cfg.WebsocketPongTimeout)
	queryServer := queryapi.NewServer(store, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supervisor := liveness.New(reg, liveness.Config{
		PingInterval:    cfg.WebsocketPingInterval,
		PongTimeout:     cfg.WebsocketPongTimeout,
		CleanupInterval: cfg.WebsocketCleanupInterval,
		RefreshInterval: cfg.PeriodicUpdateInterval,
	})
	go supervisor.Run(ctx)

	bridge := gateway.NewBridge(hub)
	go bridge.Run(ctx, redisBus)

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	queryServer.RegisterRoutes(mux)

	addr := cfg.APIHost + ":" + cfg.APIPort
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Printf("[gateway] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[gateway] server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[gateway] shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[gateway] graceful shutdown error: %v", err)
	}
	metricsSrv.Stop(shutdownCtx)

	log.Println("[gateway] shutdown complete")
}
