// Package registry implements the Subscription Registry (C4): the mapping
// from a (symbol, timeframe, kind) key to its live subscriber set and, for
// candle keys, the Candle Aggregator instance that feeds them.
//
// Grounded on internal/gateway/hub.go's clients map and
// internal/gateway/client.go's ClientSubscription, generalized from
// per-client bookkeeping into the explicit connections/aggregators pair
// SPEC_FULL.md §4.4 names, so that Add creates a key's aggregator with its
// first non-wildcard candle subscription and Remove drops it with the last
// one, rather than callers maintaining that by convention. EnsureAggregator
// also creates aggregators with no subscriber for the read paths;
// SweepIdleAggregators removes those once idle.
package registry

import (
	"strconv"
	"sync"

	"github.com/linkora-dex/backend/internal/aggregator"
)

// Kind distinguishes the two subscribable data types.
type Kind string

const (
	KindCandles   Kind = "candles"
	KindOrderbook Kind = "orderbook"
)

// Sender abstracts the WebSocket connection a Subscription writes to, so this
// package has no dependency on gorilla/websocket.
type Sender interface {
	Send(data []byte) error
}

// Subscription is one client's interest in one (symbol, timeframe, kind) key.
type Subscription struct {
	Symbol       string
	TimeframeMin int
	Kind         Kind
	Conn         Sender

	mu         sync.Mutex
	lastPongMs int64
	alive      bool
}

// Key returns the fingerprint this subscription routes under.
func (s *Subscription) Key() string { return Key(s.Symbol, s.TimeframeMin, s.Kind) }

// MarkPong records a pong/liveness signal from the client.
func (s *Subscription) MarkPong(nowMs int64) {
	s.mu.Lock()
	s.lastPongMs = nowMs
	s.alive = true
	s.mu.Unlock()
}

// MarkDead flags the subscription as no longer alive, e.g. after a failed send.
func (s *Subscription) MarkDead() {
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
}

// IsAlive and LastPongMs report the subscription's liveness state.
func (s *Subscription) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *Subscription) LastPongMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPongMs
}

// Key builds the composite fingerprint symbol:timeframe:kind.
func Key(symbol string, tfMinutes int, kind Kind) string {
	return symbol + ":" + strconv.Itoa(tfMinutes) + ":" + string(kind)
}

// Registry holds all live subscriptions and the per-key candle aggregators.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]map[*Subscription]struct{}
	aggregators map[string]*aggregator.Aggregator
	lastReadMs  map[string]int64 // keys with a read-created (unsubscribed) aggregator
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		connections: make(map[string]map[*Subscription]struct{}),
		aggregators: make(map[string]*aggregator.Aggregator),
		lastReadMs:  make(map[string]int64),
	}
}

// Add registers a subscription and, for candle subscriptions on a concrete
// (non-"all") symbol, lazily creates the backing aggregator.
func (r *Registry) Add(sub *Subscription) {
	sub.mu.Lock()
	sub.alive = true
	sub.mu.Unlock()

	key := sub.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.connections[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		r.connections[key] = set
	}
	set[sub] = struct{}{}

	if sub.Kind == KindCandles && sub.Symbol != "all" {
		if _, exists := r.aggregators[key]; !exists {
			r.aggregators[key] = aggregator.New(sub.Symbol, sub.TimeframeMin)
		}
	}
}

// Remove deregisters a subscription. When its key's subscriber set becomes
// empty, the aggregator for that key is dropped too — the invariant in
// SPEC_FULL.md §4.4.
func (r *Registry) Remove(sub *Subscription) {
	key := sub.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.connections[key]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(r.connections, key)
		delete(r.aggregators, key)
	}
}

// Broadcast sends data to every live subscription under key. It returns the
// number of successful sends and the number of subscriptions that failed
// (and were marked dead, to be reaped by the Liveness Supervisor).
func (r *Registry) Broadcast(key string, data []byte) (sent, failed int) {
	r.mu.RLock()
	set := r.connections[key]
	subs := make([]*Subscription, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	r.mu.RUnlock()

	for _, s := range subs {
		if err := s.Conn.Send(data); err != nil {
			s.MarkDead()
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

// Aggregator returns the aggregator for key, if any.
func (r *Registry) Aggregator(key string) (*aggregator.Aggregator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.aggregators[key]
	return a, ok
}

// EnsureAggregator returns the aggregator for (symbol, tf), creating one on
// demand even with zero live subscribers. This implements the "always
// hydrate on read" decision recorded for the Open Question in SPEC_FULL.md
// §9: a read path (GET /candles, GET /price) must never miss the live
// bucket just because nobody is subscribed to it yet.
func (r *Registry) EnsureAggregator(symbol string, tfMinutes int, nowMs int64) *aggregator.Aggregator {
	key := Key(symbol, tfMinutes, KindCandles)

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.aggregators[key]; ok {
		if _, hasSubs := r.connections[key]; !hasSubs {
			r.lastReadMs[key] = nowMs
		}
		return a
	}
	a := aggregator.New(symbol, tfMinutes)
	r.aggregators[key] = a
	r.lastReadMs[key] = nowMs
	return a
}

// SweepIdleAggregators removes aggregators that were created only to serve a
// read (no live subscriber ever attached) and have not been touched in over
// idleMs. Called by the Liveness Supervisor's reaper task alongside its
// normal subscription sweep. Returns the number of aggregators removed.
func (r *Registry) SweepIdleAggregators(nowMs, idleMs int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, lastMs := range r.lastReadMs {
		if _, hasSubs := r.connections[key]; hasSubs {
			delete(r.lastReadMs, key)
			continue
		}
		if nowMs-lastMs > idleMs {
			delete(r.aggregators, key)
			delete(r.lastReadMs, key)
			removed++
		}
	}
	return removed
}

// Keys returns every key with at least one live subscription.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.connections))
	for k := range r.connections {
		keys = append(keys, k)
	}
	return keys
}

// Subscriptions returns a snapshot of the subscriptions for key.
func (r *Registry) Subscriptions(key string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.connections[key]
	out := make([]*Subscription, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// All returns a snapshot of every live subscription across all keys, for the
// Liveness Supervisor's heartbeat and reaper sweeps.
func (r *Registry) All() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0)
	for _, set := range r.connections {
		for s := range set {
			out = append(out, s)
		}
	}
	return out
}

// RemoveStale removes every subscription that is no longer alive, or whose
// last pong is older than staleAfterMs, and returns how many were removed.
// This is the Liveness Supervisor's reaper sweep (SPEC_FULL.md §4.5).
func (r *Registry) RemoveStale(nowMs, staleAfterMs int64) int {
	removed := 0
	for _, sub := range r.All() {
		if !sub.IsAlive() || nowMs-sub.LastPongMs() > staleAfterMs {
			r.Remove(sub)
			removed++
		}
	}
	return removed
}

// AggregatorKeys returns every key with a live aggregator, whether created by
// a subscription or by EnsureAggregator on a read path.
func (r *Registry) AggregatorKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.aggregators))
	for k := range r.aggregators {
		keys = append(keys, k)
	}
	return keys
}

// Count returns the total number of live subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.connections {
		n += len(set)
	}
	return n
}
