package orderstore

import (
	"gorm.io/gorm/clause"
)

// onConflictDoNothing builds the ON CONFLICT(...) DO NOTHING clause gorm
// needs for the idempotent inserts SPEC_FULL.md §4.8 requires (order
// creation, ledger insertion).
func onConflictDoNothing(columns ...string) clause.OnConflict {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{Columns: cols, DoNothing: true}
}

// onConflictDoUpdate builds an upsert clause that overwrites every column on
// a primary-key conflict, for the self-healing total-snapshot writes
// SPEC_FULL.md §4.6 describes (candles, orderbook_data, collector_state).
func onConflictDoUpdate(columns ...string) clause.OnConflict {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{Columns: cols, UpdateAll: true}
}
