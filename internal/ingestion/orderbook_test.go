package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/resilience"
)

type fakeOrderbookStore struct {
	mu       sync.Mutex
	upserted []model.OrderbookSnapshot
}

func (s *fakeOrderbookStore) UpsertOrderbook(symbol string, ts int64, snap *model.OrderbookSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, *snap)
	return nil
}

func newScriptedDepthClient(t *testing.T, status int) *BinanceClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"lastUpdateId": 100,
				"bids":         [][]string{{"100.0", "1.0"}},
				"asks":         [][]string{{"101.0", "1.0"}},
			})
		}
	}))
	t.Cleanup(srv.Close)
	cb := resilience.NewCircuitBreaker(100, time.Millisecond)
	return NewBinanceClient(srv.URL, cb)
}

func TestOrderbookWorker_RunPersistsAndPublishes(t *testing.T) {
	store := &fakeOrderbookStore{}
	busOut := &fakeBus{}
	client := newScriptedDepthClient(t, http.StatusOK)

	w := &OrderbookWorker{
		Symbol:     "BTCUSDT",
		Levels:     20,
		Client:     client,
		Store:      store,
		Bus:        busOut,
		RetryDelay: time.Millisecond,
		MaxRetries: 3,
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_ = w.Run(ctx, limiter)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.upserted) == 0 {
		t.Fatal("expected at least one orderbook snapshot persisted")
	}

	busOut.mu.Lock()
	defer busOut.mu.Unlock()
	if len(busOut.published) == 0 {
		t.Fatal("expected at least one publish")
	}
}

func TestOrderbookWorker_FetchWithRetry_ExhaustsWithoutError(t *testing.T) {
	client := newScriptedDepthClient(t, http.StatusInternalServerError)

	w := &OrderbookWorker{
		Symbol:     "BTCUSDT",
		Levels:     20,
		Client:     client,
		RetryDelay: time.Millisecond,
		MaxRetries: 2,
	}

	snap, err := w.fetchWithRetry(context.Background())
	if err != nil {
		t.Fatalf("fetchWithRetry must not propagate a transient error, got %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot after exhausting retries, got %v", snap)
	}
}
