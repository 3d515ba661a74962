package model

import (
	"encoding/json"

	"github.com/linkora-dex/backend/internal/decimal"
)

// PriceLevel is one entry of an order book side.
type PriceLevel struct {
	Price    decimal.Dec8 `json:"price"`
	Quantity decimal.Dec8 `json:"quantity"`
}

// OrderbookSnapshot is a full order book image for one symbol at one
// instant. Bids are monotonically decreasing in price, asks monotonically
// increasing, both truncated to the configured level count.
type OrderbookSnapshot struct {
	Symbol       string       `json:"symbol"`
	TimestampMs  int64        `json:"-"`
	LastUpdateID int64        `json:"last_update_id"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
}

type orderbookWire struct {
	Symbol       string       `json:"symbol"`
	Timestamp    int64        `json:"timestamp"`
	LastUpdateID int64        `json:"last_update_id"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
}

// JSON renders the wire shape used by both the HTTP orderbook endpoint and
// the orderbook:{SYMBOL}/orderbook:all bus channels.
func (o *OrderbookSnapshot) JSON() []byte {
	w := orderbookWire{
		Symbol:       o.Symbol,
		Timestamp:    o.TimestampMs,
		LastUpdateID: o.LastUpdateID,
		Bids:         o.Bids,
		Asks:         o.Asks,
	}
	b, _ := json.Marshal(w)
	return b
}

// OrderbookSymbol extracts just the symbol field from a wire-encoded
// orderbook payload, used by the Fan-out Hub's bus bridge to route an
// orderbook:all message to the matching per-symbol subscribers without
// decoding the full book.
func OrderbookSymbol(data []byte) (string, error) {
	var w struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return "", err
	}
	return w.Symbol, nil
}

// Truncate trims both sides to at most levels entries, keeping the best
// prices (bids already sorted descending, asks ascending).
func (o *OrderbookSnapshot) Truncate(levels int) {
	if len(o.Bids) > levels {
		o.Bids = o.Bids[:levels]
	}
	if len(o.Asks) > levels {
		o.Asks = o.Asks[:levels]
	}
}
