package aggregator

import (
	"testing"

	"github.com/linkora-dex/backend/internal/decimal"
	"github.com/linkora-dex/backend/internal/model"
)

func minuteCandle(bucketMs int64, open, high, low, close_, vol float64) model.Candle {
	return model.Candle{
		Symbol:        "BTCUSDT",
		TimeframeMin:  1,
		BucketStartMs: bucketMs,
		Open:          decimal.NewDec8(open),
		High:          decimal.NewDec8(high),
		Low:           decimal.NewDec8(low),
		Close:         decimal.NewDec8(close_),
		Volume:        decimal.NewDec8(vol),
		QuoteVolume:   decimal.NewDec8(vol * close_),
		Trades:        1,
	}
}

func TestAggregator_FiveMinuteFold(t *testing.T) {
	a := New("BTCUSDT", 5)
	const baseMs = (int64(1_700_000_000_000) / 300_000) * 300_000 // align to a 5m bucket start

	opens := []float64{100, 101, 102, 103, 104}
	closes := []float64{101, 102, 103, 104, 105}

	var lastEmitted model.Candle
	var emittedCount int
	for i := 0; i < 5; i++ {
		m := minuteCandle(baseMs+int64(i)*60_000, opens[i], opens[i]+1, opens[i]-1, closes[i], 10)
		c, ok := a.Fold(m)
		if ok {
			lastEmitted = c
			emittedCount++
		}
	}
	if emittedCount != 0 {
		t.Fatalf("expected no emission while the 5m bucket is still open, got %d", emittedCount)
	}

	// Sixth minute candle falls in the next 5-minute bucket and must close
	// the first one.
	next := minuteCandle(baseMs+5*60_000, 200, 201, 199, 200, 10)
	closed, ok := a.Fold(next)
	if !ok {
		t.Fatal("expected the held bucket to close on the 6th minute candle")
	}

	if closed.Open.String() != decimal.NewDec8(100).String() {
		t.Errorf("open = %s, want 100", closed.Open.String())
	}
	if closed.Close.String() != decimal.NewDec8(105).String() {
		t.Errorf("close = %s, want 105", closed.Close.String())
	}
	if closed.High.String() != decimal.NewDec8(105).String() {
		t.Errorf("high = %s, want 105", closed.High.String())
	}
	if closed.Low.String() != decimal.NewDec8(99).String() {
		t.Errorf("low = %s, want 99", closed.Low.String())
	}
	if closed.Volume.String() != decimal.NewDec8(50).String() {
		t.Errorf("volume = %s, want 50", closed.Volume.String())
	}
	if closed.Trades != 5 {
		t.Errorf("trades = %d, want 5", closed.Trades)
	}
	if closed.Forming {
		t.Error("closed candle must not be marked forming")
	}
	_ = lastEmitted
}

func TestAggregator_PeekNonDestructive(t *testing.T) {
	a := New("ETHUSDT", 5)
	m := minuteCandle(0, 10, 11, 9, 10.5, 1)
	a.Fold(m)

	p1, ok := a.Peek()
	if !ok || !p1.Forming {
		t.Fatal("expected a forming peek after seeding")
	}
	p2, ok := a.Peek()
	if !ok || p2.Close.String() != p1.Close.String() {
		t.Error("peek must be non-destructive and idempotent")
	}
}

func TestAggregator_ForceCompleteOnTeardown(t *testing.T) {
	a := New("ETHUSDT", 15)
	a.Fold(minuteCandle(0, 10, 11, 9, 10.5, 1))

	closed, ok := a.ForceComplete()
	if !ok || closed.Forming {
		t.Fatal("ForceComplete must return a finalized candle")
	}
	if _, ok := a.Peek(); ok {
		t.Error("after ForceComplete, Peek must report no in-progress candle")
	}
}

func TestAggregator_Timeframe1IsPassthrough(t *testing.T) {
	a := New("BTCUSDT", 1)
	m := minuteCandle(60_000, 1, 2, 0.5, 1.5, 3)
	c, ok := a.Fold(m)
	if !ok {
		t.Fatal("timeframe=1 must emit every candle immediately")
	}
	if c.Close.String() != m.Close.String() {
		t.Error("timeframe=1 must pass the candle through unchanged")
	}
}
