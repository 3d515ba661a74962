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

// candleIntervalMs is the bucket width of the only granularity this worker
// ever fetches or persists — 1-minute bars. Higher timeframes are derived
// by the Candle Aggregator, not fetched here.
const candleIntervalMs = 60_000

// CandleStore is the subset of orderstore.Store the klines worker writes
// through.
type CandleStore interface {
	GetCollectorState(symbol string) (*model.CollectorState, error)
	SaveCollectorState(symbol string, lastTimestamp int64, isRealtime bool) error
	UpsertCandle(c *model.CandleRecord) error
}

// Publisher is the subset of bus.Bus the ingestion workers publish through.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// KlinesWorker collects historical and realtime 1-minute candles for one
// symbol, per SPEC_FULL.md §4.6.
type KlinesWorker struct {
	Symbol     string
	Client     *BinanceClient
	Store      CandleStore
	Bus        Publisher
	StartMs    int64
	BatchSize  int
	RetryDelay time.Duration
	MaxRetries int
}

// Run executes the historical catch-up phase to completion, then the
// realtime phase forever (or until ctx is cancelled). The realtime phase's
// REST calls are paced by limiter, shared across every symbol's worker so a
// large symbol list degrades to queued calls rather than a thundering herd.
func (w *KlinesWorker) Run(ctx context.Context, limiter *rate.Limiter) error {
	if err := w.runHistorical(ctx); err != nil {
		return err
	}
	return w.runRealtime(ctx, limiter)
}

func (w *KlinesWorker) runHistorical(ctx context.Context) error {
	startMs := w.StartMs
	if st, err := w.Store.GetCollectorState(w.Symbol); err == nil {
		startMs = st.LastTimestamp + candleIntervalMs
	}

	log.Printf("[ingestion] starting historical collection for %s from %d", w.Symbol, startMs)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		nowMs := time.Now().UnixMilli()
		if startMs >= nowMs {
			break
		}

		endMs := startMs + int64(w.BatchSize)*candleIntervalMs
		if endMs > nowMs {
			endMs = nowMs
		}

		candles, err := w.fetchWithRetry(ctx, startMs, endMs)
		if err != nil {
			return err
		}

		if len(candles) == 0 {
			log.Printf("[ingestion] no historical data for %s in [%d,%d), skipping batch", w.Symbol, startMs, endMs)
			startMs = endMs + candleIntervalMs
		} else {
			w.persistAll(candles)
			last := candles[len(candles)-1]
			startMs = last.BucketStartMs + candleIntervalMs
			if err := w.Store.SaveCollectorState(w.Symbol, last.BucketStartMs, false); err != nil {
				log.Printf("[ingestion] saving collector state for %s: %v", w.Symbol, err)
			}
		}

		if err := sleepCtx(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}

	log.Printf("[ingestion] historical collection complete for %s", w.Symbol)
	return nil
}

func (w *KlinesWorker) runRealtime(ctx context.Context, limiter *rate.Limiter) error {
	log.Printf("[ingestion] starting realtime collection for %s", w.Symbol)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		nowMs := time.Now().UnixMilli()
		startMs := nowMs - 5*60*1000

		candles, err := w.fetchWithRetry(ctx, startMs, nowMs)
		if err != nil {
			log.Printf("[ingestion] realtime fetch failed for %s: %v", w.Symbol, err)
			continue
		}
		if len(candles) == 0 {
			continue
		}

		w.persistAll(candles)
		last := candles[len(candles)-1]
		if err := w.Store.SaveCollectorState(w.Symbol, last.BucketStartMs, true); err != nil {
			log.Printf("[ingestion] saving collector state for %s: %v", w.Symbol, err)
		}

		for i := range candles {
			w.publish(ctx, &candles[i])
		}
	}
}

func (w *KlinesWorker) persistAll(candles []model.Candle) {
	for i := range candles {
		c := &candles[i]
		row := &model.CandleRecord{
			Symbol:      c.Symbol,
			TimestampMs: c.BucketStartMs,
			Open:        c.Open.String(),
			High:        c.High.String(),
			Low:         c.Low.String(),
			Close:       c.Close.String(),
			Volume:      c.Volume.String(),
			QuoteVolume: c.QuoteVolume.String(),
			Trades:      c.Trades,
		}
		if err := w.Store.UpsertCandle(row); err != nil {
			log.Printf("[ingestion] persisting candle %s@%d: %v", c.Symbol, c.BucketStartMs, err)
		}
	}
	log.Printf("[ingestion] inserted %d candles for %s", len(candles), candles[0].Symbol)
}

func (w *KlinesWorker) publish(ctx context.Context, c *model.Candle) {
	payload := c.JSON()
	if err := w.Bus.Publish(ctx, bus.CandleChannel(c.Symbol), payload); err != nil {
		log.Printf("[ingestion] publishing candle update for %s: %v", c.Symbol, err)
		return
	}
	if err := w.Bus.Publish(ctx, bus.CandleChannelAll(), payload); err != nil {
		log.Printf("[ingestion] publishing candle update to candles:all: %v", err)
	}
}

// fetchWithRetry applies Binance's documented retry split: HTTP 429 backs
// off exponentially (2^attempt seconds); any other non-200 result or
// transport error retries with a fixed delay. Both kinds count against the
// same budget of MaxRetries attempts. Exhausting
// retries returns an empty (not error) result — per SPEC_FULL.md §4.6 the
// next tick's fresh snapshot repairs a dropped batch, so a single bad
// window must never take the worker down.
func (w *KlinesWorker) fetchWithRetry(ctx context.Context, startMs, endMs int64) ([]model.Candle, error) {
	for attempt := 0; attempt < w.MaxRetries; attempt++ {
		candles, status, err := w.Client.FetchKlines(ctx, w.Symbol, startMs, endMs, w.BatchSize)
		if err == nil && status == http.StatusOK {
			return candles, nil
		}
		if status == http.StatusTooManyRequests {
			wait := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[ingestion] rate limit hit for %s, waiting %s", w.Symbol, wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			log.Printf("[ingestion] request failed for %s (attempt %d): %v", w.Symbol, attempt+1, err)
		} else {
			log.Printf("[ingestion] HTTP %d for %s", status, w.Symbol)
		}
		if attempt < w.MaxRetries-1 {
			if err := sleepCtx(ctx, w.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
