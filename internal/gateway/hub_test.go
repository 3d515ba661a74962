package gateway

import (
	"testing"

	"github.com/linkora-dex/backend/internal/registry"
)

type recordingSender struct {
	received [][]byte
}

func (r *recordingSender) Send(data []byte) error {
	r.received = append(r.received, data)
	return nil
}

func TestHub_BroadcastFansOutAndRecordsReplay(t *testing.T) {
	reg := registry.New()
	h := NewHub(reg)

	rs := &recordingSender{}
	sub := &registry.Subscription{Symbol: "BTCUSDT", TimeframeMin: 1, Kind: registry.KindCandles, Conn: rs}
	reg.Add(sub)

	key := sub.Key()
	h.Broadcast(key, []byte("first"))
	h.Broadcast(key, []byte("second"))

	if len(rs.received) != 2 {
		t.Fatalf("expected 2 messages delivered, got %d", len(rs.received))
	}
	if h.CurrentSeq(key) != 2 {
		t.Fatalf("CurrentSeq = %d, want 2", h.CurrentSeq(key))
	}
}

func TestHub_BackfillReturnsOnlyNewerMessages(t *testing.T) {
	reg := registry.New()
	h := NewHub(reg)
	key := registry.Key("ETHUSDT", 5, registry.KindCandles)

	h.Broadcast(key, []byte("one"))
	h.Broadcast(key, []byte("two"))
	h.Broadcast(key, []byte("three"))

	got := h.Backfill(key, 1)
	if len(got) != 2 {
		t.Fatalf("Backfill(sinceSeq=1): expected 2 messages, got %d", len(got))
	}
	if string(got[0]) != "two" || string(got[1]) != "three" {
		t.Fatalf("unexpected backfill order: %q", got)
	}
}

func TestHub_BackfillUnknownKeyReturnsNil(t *testing.T) {
	h := NewHub(registry.New())
	if got := h.Backfill("no-such-key", 0); got != nil {
		t.Fatalf("expected nil for unknown key, got %v", got)
	}
}

func TestChannelBacklog_RangeSeq(t *testing.T) {
	bl := newChannelBacklog(100)

	for i := int64(1); i <= 10; i++ {
		bl.push(i, []byte("msg"))
	}

	got := bl.rangeSeq(3, 7)
	if len(got) != 5 {
		t.Fatalf("rangeSeq(3,7): expected 5, got %d", len(got))
	}
	for i, e := range got {
		expected := int64(i) + 3
		if e.seq != expected {
			t.Errorf("entry[%d].seq = %d, want %d", i, e.seq, expected)
		}
	}
}

func TestChannelBacklog_Wraparound(t *testing.T) {
	bl := newChannelBacklog(5) // tiny buffer

	// Push 8 entries — first 3 should be evicted.
	for i := int64(1); i <= 8; i++ {
		bl.push(i, []byte("msg"))
	}

	if bl.length() != 5 {
		t.Fatalf("length() = %d, want 5", bl.length())
	}

	// Should only contain seqs 4-8.
	got := bl.rangeSeq(1, 10)
	if len(got) != 5 {
		t.Fatalf("rangeSeq(1,10): expected 5, got %d", len(got))
	}
	if got[0].seq != 4 {
		t.Errorf("oldest entry seq = %d, want 4", got[0].seq)
	}
	if got[4].seq != 8 {
		t.Errorf("newest entry seq = %d, want 8", got[4].seq)
	}
}

func TestChannelBacklog_Empty(t *testing.T) {
	bl := newChannelBacklog(10)
	got := bl.rangeSeq(1, 100)
	if len(got) != 0 {
		t.Fatalf("empty backlog rangeSeq should return 0, got %d", len(got))
	}
}
