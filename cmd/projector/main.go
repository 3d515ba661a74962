// Command projector runs the Blockchain Event Projector (C8) and the Expiry
// Sweeper against the trading contract, applying order lifecycle events into
// the Order State Store under a shared mutex that keeps the two components
// from ever racing on the same order row.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/linkora-dex/backend/internal/chain"
	"github.com/linkora-dex/backend/internal/config"
	"github.com/linkora-dex/backend/internal/metrics"
	"github.com/linkora-dex/backend/internal/orderstore"
)

// orderExpiryMaxAge is how long a PENDING order may sit unconfirmed before
// the sweeper transitions it to EXPIRED, per SPEC_FULL.md §3.
const orderExpiryMaxAge = 30 * 24 * time.Hour

func main() {
	cfg := config.Load()

	// The projector and the sweeper share a transaction mutex (see
	// internal/chain's package-level txnMutex) and one DB pool, sized wider
	// than the other binaries' for write-heavy batch apply, per SPEC_FULL.md §5.
	store, err := orderstore.OpenWithPool(cfg.DSN(), 10, 50)
	if err != nil {
		log.Fatalf("[projector] orderstore.OpenWithPool: %v", err)
	}
	defer store.Close()

	client, err := ethclient.Dial(cfg.Web3Provider)
	if err != nil {
		log.Fatalf("[projector] ethclient.Dial: %v", err)
	}

	metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetChainOK(true)
	sqlDB, err := store.DB().DB()
	if err != nil {
		log.Fatalf("[projector] underlying sql.DB: %v", err)
	}
	health.StartLivenessChecker(context.Background(), nil, sqlDB, 15*time.Second)

	metricsSrv := metrics.NewServer(":9103", health)
	metricsSrv.Start()

	topics := chain.NewTopics()
	fetcher := chain.NewFetcher(client, common.HexToAddress(cfg.TradingAddress), topics)
	applier := chain.NewApplier(store, topics)
	projector := chain.NewProjector(client, fetcher, applier, store)
	sweeper := chain.NewExpirySweeper(store, orderExpiryMaxAge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 2)
	go func() {
		projector.Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		sweeper.Run(ctx)
		done <- struct{}{}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[projector] shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Println("[projector] a component did not stop in time, exiting anyway")
		}
	}

	log.Println("[projector] shutdown complete")
}
