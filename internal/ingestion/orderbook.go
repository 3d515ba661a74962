package ingestion

import (
	"context"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/linkora-dex/backend/internal/bus"
	"github.com/linkora-dex/backend/internal/model"
)

// OrderbookStore is the subset of orderstore.Store the orderbook worker
// writes through.
type OrderbookStore interface {
	UpsertOrderbook(symbol string, ts int64, snap *model.OrderbookSnapshot) error
}

// OrderbookWorker collects order book depth snapshots for one symbol, per
// SPEC_FULL.md §4.6. Every snapshot is total — each tick replaces the whole
// book rather than applying a diff — so a dropped publish or a failed write
// is self-healing on the next tick.
type OrderbookWorker struct {
	Symbol     string
	Levels     int
	Client     *BinanceClient
	Store      OrderbookStore
	Bus        Publisher
	RetryDelay time.Duration
	MaxRetries int
}

// Run polls forever, paced by limiter (shared across every symbol's worker,
// one token per ORDERBOOK_UPDATE_INTERVAL), until ctx is cancelled.
func (w *OrderbookWorker) Run(ctx context.Context, limiter *rate.Limiter) error {
	for {
		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		snap, err := w.fetchWithRetry(ctx)
		if err != nil {
			return err
		}
		if snap == nil {
			continue
		}

		if err := w.Store.UpsertOrderbook(w.Symbol, snap.TimestampMs, snap); err != nil {
			log.Printf("[ingestion] persisting orderbook for %s: %v", w.Symbol, err)
		}
		w.publish(ctx, snap)
	}
}

func (w *OrderbookWorker) publish(ctx context.Context, snap *model.OrderbookSnapshot) {
	payload := snap.JSON()
	if err := w.Bus.Publish(ctx, bus.OrderbookChannel(snap.Symbol), payload); err != nil {
		log.Printf("[ingestion] publishing orderbook update for %s: %v", w.Symbol, err)
		return
	}
	if err := w.Bus.Publish(ctx, bus.OrderbookChannelAll(), payload); err != nil {
		log.Printf("[ingestion] publishing orderbook update to orderbook:all: %v", err)
	}
}

// fetchWithRetry mirrors KlinesWorker.fetchWithRetry's 429-vs-other split,
// per SPEC_FULL.md §4.6 ("retry policy mirrors klines").
func (w *OrderbookWorker) fetchWithRetry(ctx context.Context) (*model.OrderbookSnapshot, error) {
	for attempt := 0; attempt < w.MaxRetries; attempt++ {
		snap, status, err := w.Client.FetchDepth(ctx, w.Symbol, w.Levels)
		if err == nil && status == http.StatusOK {
			return snap, nil
		}
		if status == http.StatusTooManyRequests {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[ingestion] rate limit hit for %s depth, waiting %s", w.Symbol, wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			log.Printf("[ingestion] depth request failed for %s (attempt %d): %v", w.Symbol, attempt+1, err)
		} else {
			log.Printf("[ingestion] HTTP %d for %s depth", status, w.Symbol)
		}
		if attempt < w.MaxRetries-1 {
			if err := sleepCtx(ctx, w.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	log.Printf("[ingestion] exhausted retries fetching depth for %s, skipping tick", w.Symbol)
	return nil, nil
}
