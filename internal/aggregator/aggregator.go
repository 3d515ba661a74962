// Package aggregator implements the Candle Aggregator (one instance per
// (symbol, timeframe) pair, per SPEC_FULL.md §4.3): folding a stream of
// 1-minute candles into the bucket for the aggregator's timeframe, emitting
// the closed candle exactly on bucket transition.
//
// This is grounded on internal/marketdata/tfbuilder's bucket-transition
// detection and forming-candle bookkeeping, simplified: the teacher's
// watermark/reorder-buffer machinery (internal/marketdata/agg) has no home
// here because this spec's C3 rule fires directly off bucket-transition
// detection rather than an event-time watermark — see DESIGN.md.
package aggregator

import (
	"sync"

	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/timeframe"
)

// Aggregator folds 1-minute candles for a single symbol into a single
// timeframe's bucket. Safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	symbol    string
	tfMinutes int

	bucketStart int64
	current     model.Candle
	hasCurrent  bool
}

// New creates an Aggregator for symbol at the given registry timeframe (in
// minutes). Panics is deliberately avoided — an invalid timeframe simply
// behaves as a passthrough of whatever bucket Align computes for it.
func New(symbol string, tfMinutes int) *Aggregator {
	return &Aggregator{symbol: symbol, tfMinutes: tfMinutes}
}

// Symbol returns the symbol this aggregator was created for.
func (a *Aggregator) Symbol() string { return a.symbol }

// Timeframe returns the timeframe in minutes this aggregator was created for.
func (a *Aggregator) Timeframe() int { return a.tfMinutes }

// Fold applies one 1-minute candle m to the aggregator's bucket. It returns
// the finalized (closed) candle and true exactly when m caused a bucket
// transition; otherwise it returns the zero value and false.
func (a *Aggregator) Fold(m model.Candle) (model.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tfMinutes == 1 {
		m.Forming = false
		return m, true
	}

	bucket := timeframe.Align(m.BucketStartMs, a.tfMinutes)

	switch {
	case !a.hasCurrent:
		a.seed(bucket, m)
		return model.Candle{}, false

	case bucket != a.bucketStart:
		closed := a.current
		closed.Forming = false
		a.seed(bucket, m)
		return closed, true

	default:
		a.merge(m)
		return model.Candle{}, false
	}
}

func (a *Aggregator) seed(bucket int64, m model.Candle) {
	a.bucketStart = bucket
	a.hasCurrent = true
	a.current = model.Candle{
		Symbol:        a.symbol,
		TimeframeMin:  a.tfMinutes,
		BucketStartMs: bucket,
		Open:          m.Open,
		High:          m.High,
		Low:           m.Low,
		Close:         m.Close,
		Volume:        m.Volume,
		QuoteVolume:   m.QuoteVolume,
		Trades:        m.Trades,
		Forming:       true,
	}
}

func (a *Aggregator) merge(m model.Candle) {
	c := &a.current
	c.High = c.High.Max(m.High)
	c.Low = c.Low.Min(m.Low)
	c.Close = m.Close
	c.Volume = c.Volume.Add(m.Volume)
	c.QuoteVolume = c.QuoteVolume.Add(m.QuoteVolume)
	c.Trades += m.Trades
}

// Peek returns a non-destructive snapshot of the in-progress candle. The
// second return value is false if no candle has been seeded yet.
func (a *Aggregator) Peek() (model.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasCurrent {
		return model.Candle{}, false
	}
	snap := a.current
	snap.Forming = true
	return snap, true
}

// ForceComplete finalizes and clears the in-progress bucket, for use on
// subscription teardown so a partially-formed candle isn't silently lost.
func (a *Aggregator) ForceComplete() (model.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasCurrent {
		return model.Candle{}, false
	}
	closed := a.current
	closed.Forming = false
	a.hasCurrent = false
	a.current = model.Candle{}
	return closed, true
}
