package chain

import (
	"testing"

	"github.com/linkora-dex/backend/internal/model"
)

func TestInitCursor_AbsentInitializesAtWarmupBehindHead(t *testing.T) {
	store := newFakeStore()
	cursor, err := initCursor(nil, store, 1000)
	if err != nil {
		t.Fatalf("initCursor: %v", err)
	}
	if cursor.LastProcessedBlock != 1000-warmupBlocks {
		t.Fatalf("expected cursor at head-warmup (%d), got %d", 1000-warmupBlocks, cursor.LastProcessedBlock)
	}
	if cursor.Status != model.CursorActive {
		t.Fatalf("expected ACTIVE status, got %s", cursor.Status)
	}
}

func TestInitCursor_ReorgShorterThanCursorResets(t *testing.T) {
	store := newFakeStore()
	store.cursor = &model.ComponentCursor{
		ComponentName:      componentName,
		LastProcessedBlock: 5000,
		Status:             model.CursorActive,
	}

	cursor, err := initCursor(nil, store, 4000)
	if err != nil {
		t.Fatalf("initCursor: %v", err)
	}
	if cursor.LastProcessedBlock != 4000 {
		t.Fatalf("expected cursor reset to current head 4000, got %d", cursor.LastProcessedBlock)
	}
	if cursor.Status != model.CursorActive {
		t.Fatalf("expected ACTIVE after reorg reset, got %s", cursor.Status)
	}
}

func TestInitCursor_ResumesFromSavedBlockWhenBehindHead(t *testing.T) {
	store := newFakeStore()
	store.cursor = &model.ComponentCursor{
		ComponentName:      componentName,
		LastProcessedBlock: 900,
		Status:             model.CursorRecovery,
	}

	cursor, err := initCursor(nil, store, 1000)
	if err != nil {
		t.Fatalf("initCursor: %v", err)
	}
	if cursor.LastProcessedBlock != 900 {
		t.Fatalf("expected cursor to resume at saved block 900, got %d", cursor.LastProcessedBlock)
	}
	if cursor.Status != model.CursorRecovery {
		t.Fatalf("RECOVERY status must be left for the caller's catch-up pass to clear, got %s", cursor.Status)
	}
}
