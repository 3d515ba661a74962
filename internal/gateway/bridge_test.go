package gateway

import (
	"testing"

	"github.com/linkora-dex/backend/internal/decimal"
	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/registry"
)

func TestBridge_RelayCandleFoldsIntoSubscribedTimeframe(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)
	bridge := NewBridge(hub)

	oneMin := &recordingSender{}
	fiveMin := &recordingSender{}
	reg.Add(&registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: registry.KindCandles, Conn: oneMin})
	reg.Add(&registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 5, Kind: registry.KindCandles, Conn: fiveMin})

	const fiveMinMs = 5 * 60_000
	base := (int64(1_700_000_000_000) / fiveMinMs) * fiveMinMs // align to a 5m bucket start
	for i := 0; i < 5; i++ {
		c := model.Candle{
			Symbol:        "BTCUSDT",
			TimeframeMin:  1,
			BucketStartMs: base + int64(i)*60_000,
			Open:          decimal.NewDec8("100"),
			High:          decimal.NewDec8("101"),
			Low:           decimal.NewDec8("99"),
			Close:         decimal.NewDec8("100.5"),
			Volume:        decimal.NewDec8("10"),
			QuoteVolume:   decimal.NewDec8("1000"),
			Trades:        3,
		}
		bridge.relayCandle(c.JSON())
	}

	if got := len(oneMin.received); got != 5 {
		t.Fatalf("1m subscriber: expected 5 passthrough candles, got %d", got)
	}
	if got := len(fiveMin.received); got != 0 {
		t.Fatalf("5m subscriber: expected no closed bucket yet after 5 one-minute bars filling exactly one 5m bucket, got %d", got)
	}

	// A sixth bar in the next 5m bucket closes the first one. Since each
	// relayCandle call folds exactly one logical candle (Run subscribes to
	// candles:all only, never also candles:{SYMBOL}, so a published bar is
	// never relayed twice), the closed bucket's volume/trades must be a
	// plain sum over the five 1m bars, not double-counted.
	c := model.Candle{
		Symbol:        "BTCUSDT",
		TimeframeMin:  1,
		BucketStartMs: base + 5*60_000,
		Open:          decimal.NewDec8("100"),
		High:          decimal.NewDec8("101"),
		Low:           decimal.NewDec8("99"),
		Close:         decimal.NewDec8("100.5"),
		Volume:        decimal.NewDec8("10"),
		QuoteVolume:   decimal.NewDec8("1000"),
		Trades:        3,
	}
	bridge.relayCandle(c.JSON())

	if got := len(fiveMin.received); got != 1 {
		t.Fatalf("5m subscriber: expected the closed bucket to broadcast once, got %d", got)
	}
	closed, err := model.ParseCandleJSON(fiveMin.received[0])
	if err != nil {
		t.Fatalf("ParseCandleJSON: %v", err)
	}
	if closed.Volume.String() != decimal.NewDec8("50").String() {
		t.Fatalf("closed 5m bucket: expected volume 50 (5 x 10, summed once each), got %s", closed.Volume.String())
	}
	if closed.Trades != 15 {
		t.Fatalf("closed 5m bucket: expected 15 trades (5 x 3, summed once each), got %d", closed.Trades)
	}
}

func TestBridge_RelayOrderbookForwardsToMatchingSymbolSubscribers(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)
	bridge := NewBridge(hub)

	btc := &recordingSender{}
	eth := &recordingSender{}
	reg.Add(&registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: registry.KindOrderbook, Conn: btc})
	reg.Add(&registry.Subscription{Symbol: "ETHUSDT", TimeframeMin: 1, Kind: registry.KindOrderbook, Conn: eth})

	payload := []byte(`{"symbol":"BTCUSDT","timestamp":1,"last_update_id":1,"bids":[],"asks":[]}`)
	bridge.relayOrderbook(payload)

	if len(btc.received) != 1 {
		t.Fatalf("BTCUSDT subscriber: expected 1 message, got %d", len(btc.received))
	}
	if len(eth.received) != 0 {
		t.Fatalf("ETHUSDT subscriber: expected 0 messages, got %d", len(eth.received))
	}
}

func TestBridge_RelayOrderbookAlsoReachesWildcardSubscriber(t *testing.T) {
	reg := registry.New()
	hub := NewHub(reg)
	bridge := NewBridge(hub)

	wildcard := &recordingSender{}
	reg.Add(&registry.Subscription{Symbol: "all", TimeframeMin: 1, Kind: registry.KindOrderbook, Conn: wildcard})

	payload := []byte(`{"symbol":"BTCUSDT","timestamp":1,"last_update_id":1,"bids":[],"asks":[]}`)
	bridge.relayOrderbook(payload)

	if len(wildcard.received) != 1 {
		t.Fatalf("wildcard subscriber: expected 1 message, got %d", len(wildcard.received))
	}
}
