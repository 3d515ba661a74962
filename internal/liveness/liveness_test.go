package liveness

import (
	"testing"
	"time"

	"github.com/linkora-dex/backend/internal/decimal"
	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/registry"
)

func makeMinuteCandle(bucketMs int64) model.Candle {
	return model.Candle{
		Symbol:        "BTCUSDT",
		TimeframeMin:  1,
		BucketStartMs: bucketMs,
		Open:          decimal.NewDec8(100),
		High:          decimal.NewDec8(101),
		Low:           decimal.NewDec8(99),
		Close:         decimal.NewDec8(100.5),
		Volume:        decimal.NewDec8(10),
		Trades:        1,
	}
}

type recordingSender struct {
	messages [][]byte
	fail     bool
}

func (r *recordingSender) Send(data []byte) error {
	if r.fail {
		return errSend
	}
	r.messages = append(r.messages, data)
	return nil
}

var errSend = testError("send failed")

type testError string

func (e testError) Error() string { return string(e) }

func cfg() Config {
	return Config{
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		CleanupInterval: 120 * time.Second,
		RefreshInterval: 5 * time.Second,
	}
}

func TestSupervisor_HeartbeatOnceMarksFailedSendsDead(t *testing.T) {
	r := registry.New()
	ok := &recordingSender{}
	bad := &recordingSender{fail: true}
	s1 := &registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: registry.KindCandles, Conn: ok}
	s2 := &registry.Subscription{Symbol: "ETHUSDT", TimeframeMin: 1, Kind: registry.KindCandles, Conn: bad}
	r.Add(s1)
	r.Add(s2)

	sup := New(r, cfg())
	sent, failed := sup.HeartbeatOnce(1000)
	if sent != 1 || failed != 1 {
		t.Fatalf("sent=%d failed=%d, want 1/1", sent, failed)
	}
	if len(ok.messages) != 1 {
		t.Fatalf("expected one heartbeat message, got %d", len(ok.messages))
	}
	if s2.IsAlive() {
		t.Error("subscription with failed send must be marked dead")
	}
}

func TestSupervisor_ReaperRemovesStaleSubscriptions(t *testing.T) {
	r := registry.New()
	sub := &registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: registry.KindCandles, Conn: &recordingSender{}}
	r.Add(sub)
	sub.MarkPong(0)

	staleAfterMs := cfg().PongTimeout.Milliseconds()
	removed := r.RemoveStale(staleAfterMs+1, staleAfterMs)
	if removed != 1 {
		t.Fatalf("expected the stale subscription to be reaped, removed=%d", removed)
	}
	if r.Count() != 0 {
		t.Error("registry must be empty after reaping the only subscriber")
	}
}

func TestSupervisor_ReaperKeepsFreshSubscriptions(t *testing.T) {
	r := registry.New()
	sub := &registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: registry.KindCandles, Conn: &recordingSender{}}
	r.Add(sub)
	sub.MarkPong(1000)

	removed := r.RemoveStale(1000+30_000, 60_000)
	if removed != 0 {
		t.Fatalf("fresh subscription must survive the reaper, removed=%d", removed)
	}
}

func TestSupervisor_RefreshOncePushesAggregatorPeek(t *testing.T) {
	r := registry.New()
	sender := &recordingSender{}
	sub := &registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 5, Kind: registry.KindCandles, Conn: sender}
	r.Add(sub)

	agg, _ := r.Aggregator(sub.Key())
	agg.Fold(makeMinuteCandle(0))

	sup := New(r, cfg())
	sup.RefreshOnce(1000)
	if len(sender.messages) != 1 {
		t.Fatalf("expected one refresh push, got %d", len(sender.messages))
	}

	// A second call inside the same refresh window must not push again.
	sup.RefreshOnce(1000 + 1000)
	if len(sender.messages) != 1 {
		t.Error("refresh must not fire more than once per RefreshInterval per key")
	}

	sup.RefreshOnce(1000 + cfg().RefreshInterval.Milliseconds() + 1)
	if len(sender.messages) != 2 {
		t.Error("refresh must fire again once the interval has elapsed")
	}
}
