package model

import "testing"

func TestOrderTypeString(t *testing.T) {
	cases := map[OrderType]string{
		OrderTypeLimit:        "LIMIT",
		OrderTypeStopLoss:     "STOP_LOSS",
		OrderTypeMarket:       "MARKET",
		OrderTypeConditional:  "CONDITIONAL",
		OrderType(99):         "UNKNOWN",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("OrderType(%d).String() = %q, want %q", in, got, want)
		}
	}
}

func TestOrderbookSnapshotTruncate(t *testing.T) {
	ob := &OrderbookSnapshot{
		Symbol: "BTCUSDT",
		Bids:   []PriceLevel{{}, {}, {}},
		Asks:   []PriceLevel{{}, {}},
	}
	ob.Truncate(2)
	if len(ob.Bids) != 2 {
		t.Errorf("expected bids truncated to 2, got %d", len(ob.Bids))
	}
	if len(ob.Asks) != 2 {
		t.Errorf("expected asks left at 2, got %d", len(ob.Asks))
	}
}

func TestOrderbookSnapshotJSONShape(t *testing.T) {
	ob := &OrderbookSnapshot{Symbol: "ETHUSDT", TimestampMs: 1000, LastUpdateID: 42}
	b := ob.JSON()
	if len(b) == 0 {
		t.Fatal("expected non-empty JSON")
	}
}
