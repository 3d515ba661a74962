package chain

import (
	"gorm.io/gorm"

	"github.com/linkora-dex/backend/internal/model"
)

// componentName is the fixed ComponentCursor row name this projector owns,
// matching the Python original's EventProcessor.component_name.
const componentName = "order_listener"

// warmupBlocks is how far behind the chain head a first-run cursor starts,
// so startup doesn't have to replay the contract's entire history.
const warmupBlocks = 200

// initCursor reads the component's saved cursor and resolves it against the
// current chain head, implementing the transition table in SPEC_FULL.md
// §4.8: absent -> initialize at head-warmup, ACTIVE; RECOVERY/RESET -> stays
// pending a catch-up pass; saved_block > current_block (shorter reorg than
// the cursor) -> reset to current_block, ACTIVE; otherwise resume as-is.
func initCursor(tx *gorm.DB, store cursorStore, currentBlock uint64) (*model.ComponentCursor, error) {
	cursor, err := store.GetComponentState(tx, componentName)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			start := uint64(0)
			if currentBlock > warmupBlocks {
				start = currentBlock - warmupBlocks
			}
			cursor = &model.ComponentCursor{
				ComponentName:      componentName,
				LastProcessedBlock: start,
				Status:             model.CursorActive,
			}
			return cursor, store.SaveComponentState(tx, cursor)
		}
		return nil, err
	}

	if cursor.LastProcessedBlock > currentBlock {
		cursor.LastProcessedBlock = currentBlock
		cursor.Status = model.CursorActive
		return cursor, store.SaveComponentState(tx, cursor)
	}

	return cursor, nil
}

// cursorStore is the slice of the orderstore.Store this package depends on,
// kept as an interface so the projector can be tested against a fake rather
// than a live Postgres connection.
type cursorStore interface {
	GetComponentState(tx *gorm.DB, component string) (*model.ComponentCursor, error)
	SaveComponentState(tx *gorm.DB, c *model.ComponentCursor) error
}
