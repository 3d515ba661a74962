package registry

import "testing"

type fakeSender struct {
	sent    [][]byte
	failing bool
}

func (f *fakeSender) Send(data []byte) error {
	if f.failing {
		return errFail
	}
	f.sent = append(f.sent, data)
	return nil
}

var errFail = &sendError{"send failed"}

type sendError struct{ msg string }

func (e *sendError) Error() string { return e.msg }

func TestRegistry_AddCreatesAggregatorOnlyForConcreteCandleSub(t *testing.T) {
	r := New()

	candleSub := &Subscription{Symbol: "BTCUSDT", TimeframeMin: 5, Kind: KindCandles, Conn: &fakeSender{}}
	r.Add(candleSub)
	if _, ok := r.Aggregator(candleSub.Key()); !ok {
		t.Fatal("expected an aggregator for a concrete candle subscription")
	}

	wildcardSub := &Subscription{Symbol: "all", TimeframeMin: 1, Kind: KindCandles, Conn: &fakeSender{}}
	r.Add(wildcardSub)
	if _, ok := r.Aggregator(wildcardSub.Key()); ok {
		t.Fatal("wildcard symbol subscriptions must not get an aggregator")
	}

	orderbookSub := &Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: KindOrderbook, Conn: &fakeSender{}}
	r.Add(orderbookSub)
	if _, ok := r.Aggregator(orderbookSub.Key()); ok {
		t.Fatal("orderbook subscriptions must not get an aggregator")
	}
}

func TestRegistry_RemoveDropsAggregatorWhenSetEmpties(t *testing.T) {
	r := New()
	sub := &Subscription{Symbol: "ETHUSDT", TimeframeMin: 15, Kind: KindCandles, Conn: &fakeSender{}}
	r.Add(sub)
	r.Remove(sub)

	if _, ok := r.Aggregator(sub.Key()); ok {
		t.Fatal("aggregator must be dropped once the last subscriber is removed")
	}
	if n := r.Count(); n != 0 {
		t.Fatalf("expected zero subscriptions after remove, got %d", n)
	}
}

func TestRegistry_BroadcastMarksFailedSendsDead(t *testing.T) {
	r := New()
	good := &fakeSender{}
	bad := &fakeSender{failing: true}
	s1 := &Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: KindCandles, Conn: good}
	s2 := &Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: KindCandles, Conn: bad}
	r.Add(s1)
	r.Add(s2)

	sent, failed := r.Broadcast(s1.Key(), []byte("payload"))
	if sent != 1 || failed != 1 {
		t.Fatalf("sent=%d failed=%d, want 1/1", sent, failed)
	}
	if s2.IsAlive() {
		t.Error("subscription with a failed send must be marked dead")
	}
	if !s1.IsAlive() {
		t.Error("subscription with a successful send must remain alive")
	}
}

func TestRegistry_EnsureAggregatorHydratesUnsubscribedKey(t *testing.T) {
	r := New()
	a := r.EnsureAggregator("SOLUSDT", 60, 1000)
	if a.Symbol() != "SOLUSDT" || a.Timeframe() != 60 {
		t.Fatal("EnsureAggregator must create an aggregator for the requested key")
	}

	removed := r.SweepIdleAggregators(1000+61_000, 60_000)
	if removed != 1 {
		t.Fatalf("expected the idle read-created aggregator to be swept, removed=%d", removed)
	}
	if _, ok := r.Aggregator(Key("SOLUSDT", 60, KindCandles)); ok {
		t.Error("swept aggregator must no longer be retrievable")
	}
}
