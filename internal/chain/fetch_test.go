package chain

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

type fakeChainClient struct {
	mu    sync.Mutex
	calls int
	head  uint64
}

func (f *fakeChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChainClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return []gethtypes.Log{{BlockNumber: q.FromBlock.Uint64()}}, nil
}

func TestFetcher_SmallGapUsesSequentialSingleCall(t *testing.T) {
	client := &fakeChainClient{}
	f := NewFetcher(client, common.Address{}, NewTopics())

	logs, err := f.FetchRange(context.Background(), 100, 105)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly one FilterLogs call for a small gap, got %d", client.calls)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one merged log, got %d", len(logs))
	}
}

func TestFetcher_LargeGapUsesParallelPerBlockCalls(t *testing.T) {
	client := &fakeChainClient{}
	f := NewFetcher(client, common.Address{}, NewTopics())

	from, to := uint64(100), uint64(120) // gap = 20 > parallelThreshold
	logs, err := f.FetchRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	wantCalls := int(to-from) + 1
	if client.calls != wantCalls {
		t.Fatalf("expected %d per-block FilterLogs calls, got %d", wantCalls, client.calls)
	}
	if len(logs) != wantCalls {
		t.Fatalf("expected %d merged logs, got %d", wantCalls, len(logs))
	}
}

func TestFetcher_EmptyRangeReturnsNothing(t *testing.T) {
	client := &fakeChainClient{}
	f := NewFetcher(client, common.Address{}, NewTopics())

	logs, err := f.FetchRange(context.Background(), 100, 99)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if logs != nil {
		t.Fatalf("expected nil logs for an empty range, got %v", logs)
	}
	if client.calls != 0 {
		t.Fatalf("expected zero FilterLogs calls for an empty range, got %d", client.calls)
	}
}
