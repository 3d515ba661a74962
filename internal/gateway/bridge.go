package gateway

import (
	"context"
	"log"
	"strings"

	"github.com/linkora-dex/backend/internal/bus"
	"github.com/linkora-dex/backend/internal/model"
	"github.com/linkora-dex/backend/internal/registry"
)

// Bridge relays Pub/Sub Bus messages published by the Ingestion Workers into
// the Hub. It consumes only the aggregate candles:all/orderbook:all
// channels — the per-symbol channels carry the identical payload and exist
// for external consumers, not the hub itself. A published 1-minute candle
// is folded through every live timeframe aggregator for its symbol
// (including the symbol's own 1-minute aggregator, which is a pure
// passthrough per Aggregator.Fold); each bucket close is broadcast to that
// timeframe's subscribers. Order book snapshots carry no timeframe
// semantics and are forwarded to every live subscriber for the symbol
// unchanged.
type Bridge struct {
	Hub *Hub
}

// NewBridge builds a Bridge over hub.
func NewBridge(hub *Hub) *Bridge { return &Bridge{Hub: hub} }

// Run subscribes to the two aggregate bus channels and relays messages
// until ctx is cancelled or the bus connection drops.
func (b *Bridge) Run(ctx context.Context, bu *bus.Bus) {
	sub := bu.Subscribe(ctx, bus.CandleChannelAll(), bus.OrderbookChannelAll())
	defer sub.Close()

	for msg := range sub.Messages() {
		switch msg.Channel {
		case bus.CandleChannelAll():
			b.relayCandle(msg.Payload)
		case bus.OrderbookChannelAll():
			b.relayOrderbook(msg.Payload)
		}
	}
}

func (b *Bridge) relayCandle(payload []byte) {
	m, err := model.ParseCandleJSON(payload)
	if err != nil {
		log.Printf("[gateway] bridge: malformed candle payload: %v", err)
		return
	}
	if m.Symbol == "" {
		return
	}

	prefix := m.Symbol + ":"
	for _, key := range b.Hub.Registry.AggregatorKeys() {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ":"+string(registry.KindCandles)) {
			continue
		}
		agg, ok := b.Hub.Registry.Aggregator(key)
		if !ok {
			continue
		}
		if closed, transitioned := agg.Fold(m); transitioned {
			b.Hub.Broadcast(key, closed.JSON())
		}
	}

	// The "all" symbol stream is a raw passthrough of the 1-minute feed,
	// legal only at timeframe=1, and carries no aggregator of its own.
	if m.TimeframeMin == 1 {
		allKey := registry.Key("all", 1, registry.KindCandles)
		b.Hub.Broadcast(allKey, m.JSON())
	}
}

func (b *Bridge) relayOrderbook(payload []byte) {
	symbol, err := model.OrderbookSymbol(payload)
	if err != nil || symbol == "" {
		log.Printf("[gateway] bridge: malformed orderbook payload: %v", err)
		return
	}

	prefix := symbol + ":"
	for _, key := range b.Hub.Registry.Keys() {
		if !strings.HasSuffix(key, ":"+string(registry.KindOrderbook)) {
			continue
		}
		if strings.HasPrefix(key, prefix) || strings.HasPrefix(key, "all:") {
			b.Hub.Broadcast(key, payload)
		}
	}
}
