package chain

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/linkora-dex/backend/internal/model"
)

// pollInterval and errorBackoff match the polling loop in SPEC_FULL.md §4.8.
const (
	pollInterval = 5 * time.Second
	errorBackoff = 30 * time.Second
)

// txnMutex serializes the projector's batch-apply transaction against the
// expiry sweeper's update, so an order's status never oscillates between the
// two — the process-local lock SPEC_FULL.md §5 calls for.
var txnMutex sync.Mutex

// Projector runs the Event Projector's polling loop: read the chain head,
// fetch any new logs since the cursor, apply them transactionally, and
// commit the advanced cursor.
type Projector struct {
	fetcher *Fetcher
	applier *Applier
	store   Store
	client  ChainClient
}

// NewProjector wires a Fetcher, Applier, Store, and chain client into a
// runnable Projector.
func NewProjector(client ChainClient, fetcher *Fetcher, applier *Applier, store Store) *Projector {
	return &Projector{client: client, fetcher: fetcher, applier: applier, store: store}
}

// Run polls every pollInterval until ctx is cancelled. On error it commits
// an ERROR cursor status and sleeps errorBackoff before retrying, per
// SPEC_FULL.md §4.8's polling-loop pseudocode.
func (p *Projector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.tick(ctx); err != nil {
			log.Printf("[chain] projector tick failed: %v", err)
			p.markError()
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}

func (p *Projector) tick(ctx context.Context) error {
	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return err
	}

	txnMutex.Lock()
	defer txnMutex.Unlock()

	cursor, err := initCursor(nil, p.store, head)
	if err != nil {
		return err
	}
	if cursor.LastProcessedBlock >= head {
		return nil
	}

	fromBlock := cursor.LastProcessedBlock + 1
	logs, err := p.fetcher.FetchRange(ctx, fromBlock, head)
	if err != nil {
		return err
	}

	return p.applier.ApplyBatch(ctx, logs, head)
}

func (p *Projector) markError() {
	cursor, err := p.store.GetComponentState(nil, componentName)
	if err != nil {
		cursor = &model.ComponentCursor{ComponentName: componentName}
	}
	cursor.Status = model.CursorError
	if err := p.store.SaveComponentState(nil, cursor); err != nil {
		log.Printf("[chain] failed to commit ERROR cursor status: %v", err)
	}
}

// expiryStore is the slice of orderstore.Store the sweeper depends on.
type expiryStore interface {
	ExpireStalePendingOrders(maxAge time.Duration) (int64, error)
}

// ExpirySweeper transitions stale PENDING orders to EXPIRED on a fixed
// schedule, serialized against the projector via txnMutex so status never
// oscillates between the two components.
type ExpirySweeper struct {
	store  expiryStore
	maxAge time.Duration
}

// NewExpirySweeper creates a sweeper that expires PENDING orders older than
// maxAge (default 30 days, per SPEC_FULL.md §3).
func NewExpirySweeper(store expiryStore, maxAge time.Duration) *ExpirySweeper {
	return &ExpirySweeper{store: store, maxAge: maxAge}
}

// Run sweeps every 60 seconds until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single sweep pass, exported for direct unit testing
// without a ticker.
func (s *ExpirySweeper) SweepOnce() {
	txnMutex.Lock()
	defer txnMutex.Unlock()

	n, err := s.store.ExpireStalePendingOrders(s.maxAge)
	if err != nil {
		log.Printf("[chain] expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[chain] expiry sweep transitioned %d orders to EXPIRED", n)
	}
}
