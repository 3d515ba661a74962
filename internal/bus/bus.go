// Package bus implements the Pub/Sub Bus Adapter (C7): a minimal
// publish/subscribe indirection between the Ingestion Workers and the
// Fan-out Hub, backed by Redis PUBLISH/SUBSCRIBE.
//
// Grounded on internal/marketdata/bus/fanout.go's non-blocking, at-most-once
// fan-out discipline, generalized from a single-process model.Candle-typed
// channel fan-out to a Redis-backed named-channel adapter — ingestion and
// the gateway are separate process images here (cmd/marketdata,
// cmd/gateway), the same process-boundary split as the teacher's
// cmd/mdengine and cmd/api_gateway, which the teacher itself already
// crosses with Redis Pub/Sub in internal/gateway/hub.go.
package bus

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Bus publishes and subscribes to named channels over Redis. Ordering per
// channel is whatever guarantee the Redis server gives a single publisher;
// the adapter adds no further buffering or durability on top of it.
type Bus struct {
	client *goredis.Client
}

// New connects to Redis and verifies the connection with a PING.
func New(addr, password string, db int) (*Bus, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bus: redis ping: %w", err)
	}
	log.Printf("[bus] connected to %s", addr)
	return &Bus{client: client}, nil
}

// Client exposes the underlying client for health checks.
func (b *Bus) Client() *goredis.Client { return b.client }

// Publish sends payload on channel. Errors are returned to the caller, which
// per SPEC_FULL.md §4.6 should log and continue rather than treat this as
// fatal — a dropped publish is repaired by the next tick's total snapshot.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Msg is a received bus message, decoupled from the go-redis wire type so
// consumers only depend on this package.
type Msg struct {
	Channel string
	Payload []byte
}

// Subscription is a live Redis subscription; call Close when done.
type Subscription struct {
	ps *goredis.PubSub
}

// Subscribe opens a subscription to the given exact channel names.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) *Subscription {
	return &Subscription{ps: b.client.Subscribe(ctx, channels...)}
}

// PSubscribe opens a subscription to the given glob-style patterns, e.g.
// "candles:*".
func (b *Bus) PSubscribe(ctx context.Context, patterns ...string) *Subscription {
	return &Subscription{ps: b.client.PSubscribe(ctx, patterns...)}
}

// Messages returns a channel of received messages. It closes when the
// subscription is closed or the connection drops.
func (s *Subscription) Messages() <-chan Msg {
	raw := s.ps.Channel()
	out := make(chan Msg)
	go func() {
		defer close(out)
		for m := range raw {
			out <- Msg{Channel: m.Channel, Payload: []byte(m.Payload)}
		}
	}()
	return out
}

// Close ends the subscription.
func (s *Subscription) Close() error { return s.ps.Close() }

// Close closes the underlying Redis client.
func (b *Bus) Close() error { return b.client.Close() }

// Channel name builders, matching SPEC_FULL.md §6.

func CandleChannel(symbol string) string    { return "candles:" + symbol }
func CandleChannelAll() string              { return "candles:all" }
func OrderbookChannel(symbol string) string { return "orderbook:" + symbol }
func OrderbookChannelAll() string           { return "orderbook:all" }
