package ingestion

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/linkora-dex/backend/internal/resilience"
)

// Config bundles the environment-driven settings the supervisor needs to
// build one KlinesWorker and, for configured symbols, one OrderbookWorker.
type Config struct {
	BaseURL string

	Symbols          []string
	StartEpochMs     int64
	BatchSize        int
	RetryDelay       time.Duration
	MaxRetries       int
	RealtimeInterval time.Duration

	OrderbookSymbols        []string
	OrderbookLevels         int
	OrderbookUpdateInterval time.Duration
	OrderbookRetryDelay     time.Duration
	OrderbookMaxRetries     int
}

// Supervisor owns every symbol's klines and order book workers and the two
// shared rate limiters that pace their REST calls.
type Supervisor struct {
	cfg   Config
	store interface {
		CandleStore
		OrderbookStore
	}
	bus Publisher
}

// NewSupervisor builds a Supervisor. store must implement both CandleStore
// and OrderbookStore — orderstore.Store does.
func NewSupervisor(cfg Config, store interface {
	CandleStore
	OrderbookStore
}, bus Publisher) *Supervisor {
	return &Supervisor{cfg: cfg, store: store, bus: bus}
}

// Run starts every symbol's workers concurrently and blocks until ctx is
// cancelled or every worker has returned.
func (s *Supervisor) Run(ctx context.Context) {
	klinesBreaker := resilience.NewCircuitBreaker(5, 30*time.Second)
	klinesBreaker.OnStateChange = func(from, to resilience.State) {
		log.Printf("[ingestion] klines circuit breaker %s -> %s", from, to)
	}
	klinesClient := NewBinanceClient(s.cfg.BaseURL, klinesBreaker)
	klinesLimiter := rate.NewLimiter(rate.Every(s.cfg.RealtimeInterval), 1)

	orderbookBreaker := resilience.NewCircuitBreaker(5, 30*time.Second)
	orderbookBreaker.OnStateChange = func(from, to resilience.State) {
		log.Printf("[ingestion] orderbook circuit breaker %s -> %s", from, to)
	}
	orderbookClient := NewBinanceClient(s.cfg.BaseURL, orderbookBreaker)
	orderbookClient.httpClient.Timeout = 10 * time.Second
	orderbookLimiter := rate.NewLimiter(rate.Every(s.cfg.OrderbookUpdateInterval), 1)

	done := make(chan struct{})
	running := 0

	for _, symbol := range s.cfg.Symbols {
		running++
		w := &KlinesWorker{
			Symbol:     symbol,
			Client:     klinesClient,
			Store:      s.store,
			Bus:        s.bus,
			StartMs:    s.cfg.StartEpochMs,
			BatchSize:  s.cfg.BatchSize,
			RetryDelay: s.cfg.RetryDelay,
			MaxRetries: s.cfg.MaxRetries,
		}
		go func(symbol string) {
			defer func() { done <- struct{}{} }()
			if err := w.Run(ctx, klinesLimiter); err != nil {
				log.Printf("[ingestion] klines worker for %s stopped: %v", symbol, err)
			}
		}(symbol)
	}

	for _, symbol := range s.cfg.OrderbookSymbols {
		running++
		w := &OrderbookWorker{
			Symbol:     symbol,
			Levels:     s.cfg.OrderbookLevels,
			Client:     orderbookClient,
			Store:      s.store,
			Bus:        s.bus,
			RetryDelay: s.cfg.OrderbookRetryDelay,
			MaxRetries: s.cfg.OrderbookMaxRetries,
		}
		go func(symbol string) {
			defer func() { done <- struct{}{} }()
			if err := w.Run(ctx, orderbookLimiter); err != nil {
				log.Printf("[ingestion] orderbook worker for %s stopped: %v", symbol, err)
			}
		}(symbol)
	}

	for i := 0; i < running; i++ {
		<-done
	}
}
