// Package model defines the wire and persistence types shared across the
// ingestion, aggregation, chain-projection, and query-API components.
package model

import (
	"encoding/json"
	"strconv"

	"github.com/linkora-dex/backend/internal/decimal"
	"github.com/linkora-dex/backend/internal/timeframe"
)

// Candle is an OHLCV bar for one symbol at one timeframe. BucketStartMs is
// the UTC millisecond timestamp of the bucket's start as timeframe.Align
// computes it (a Monday or first-of-month boundary for week and month).
type Candle struct {
	Symbol        string      `json:"symbol"`
	TimeframeMin  int         `json:"-"`
	BucketStartMs int64       `json:"-"`
	Open          decimal.Dec8 `json:"open"`
	High          decimal.Dec8 `json:"high"`
	Low           decimal.Dec8 `json:"low"`
	Close         decimal.Dec8 `json:"close"`
	Volume        decimal.Dec8 `json:"volume"`
	QuoteVolume   decimal.Dec8 `json:"quote_volume"`
	Trades        int32       `json:"trades"`
	Forming       bool        `json:"forming"`
}

// Key identifies the (symbol, timeframe) aggregation stream this candle
// belongs to, e.g. "BTCUSDT:5".
func (c *Candle) Key() string {
	return c.Symbol + ":" + strconv.Itoa(c.TimeframeMin)
}

// candleWire is the JSON shape emitted over HTTP/WS/bus: timestamps as
// milliseconds and a timeframe label, matching SPEC_FULL.md §6.
type candleWire struct {
	Symbol      string      `json:"symbol"`
	Timeframe   string      `json:"timeframe"`
	Timestamp   int64       `json:"timestamp"`
	Open        decimal.Dec8 `json:"open"`
	High        decimal.Dec8 `json:"high"`
	Low         decimal.Dec8 `json:"low"`
	Close       decimal.Dec8 `json:"close"`
	Volume      decimal.Dec8 `json:"volume"`
	QuoteVolume decimal.Dec8 `json:"quote_volume"`
	Trades      int32       `json:"trades"`
	Forming     bool        `json:"forming"`
}

// JSON returns the candle encoded for wire transmission.
func (c *Candle) JSON() []byte {
	w := candleWire{
		Symbol:      c.Symbol,
		Timeframe:   timeframe.Label(c.TimeframeMin),
		Timestamp:   c.BucketStartMs,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		Volume:      c.Volume,
		QuoteVolume: c.QuoteVolume,
		Trades:      c.Trades,
		Forming:     c.Forming,
	}
	b, _ := json.Marshal(w)
	return b
}

// ParseCandleJSON decodes the wire shape JSON produces, the inverse used by
// the Fan-out Hub's bus bridge to re-fold a published 1-minute candle into
// every other subscribed timeframe's aggregator.
func ParseCandleJSON(data []byte) (Candle, error) {
	var w candleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Candle{}, err
	}
	tfMinutes, _ := timeframe.Parse(w.Timeframe)
	return Candle{
		Symbol:        w.Symbol,
		TimeframeMin:  tfMinutes,
		BucketStartMs: w.Timestamp,
		Open:          w.Open,
		High:          w.High,
		Low:           w.Low,
		Close:         w.Close,
		Volume:        w.Volume,
		QuoteVolume:   w.QuoteVolume,
		Trades:        w.Trades,
		Forming:       w.Forming,
	}, nil
}
