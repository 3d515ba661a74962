package orderstore

import (
	"encoding/json"
	"time"

	"github.com/linkora-dex/backend/internal/model"
)

// UpsertCandle writes a 1-minute candle row, replacing any existing row for
// the same (symbol, timestamp) — ingestion's realtime phase re-fetches and
// re-writes overlapping minutes on every tick, so the write must be a true
// upsert, not an insert-or-skip.
func (s *Store) UpsertCandle(c *model.CandleRecord) error {
	return withRetry(func() error {
		return s.db.Clauses(onConflictDoUpdate("symbol", "timestamp")).Create(c).Error
	})
}

// CandlesRange returns persisted 1-minute candles for symbol from startMs
// (inclusive) up to limit rows, oldest first — the source rows the Candle
// Aggregator folds on a cold read, and the raw series GET /candles serves
// for timeframe "1".
func (s *Store) CandlesRange(symbol string, startMs int64, limit int) ([]model.CandleRecord, error) {
	var rows []model.CandleRecord
	err := s.db.Where("symbol = ? AND timestamp >= ?", symbol, startMs).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// UpsertOrderbook writes a snapshot row, replacing any existing row for the
// same (symbol, timestamp).
func (s *Store) UpsertOrderbook(symbol string, ts int64, snap *model.OrderbookSnapshot) error {
	bids, err := json.Marshal(snap.Bids)
	if err != nil {
		return err
	}
	asks, err := json.Marshal(snap.Asks)
	if err != nil {
		return err
	}
	row := model.OrderbookRecord{
		Symbol:       symbol,
		TimestampMs:  ts,
		LastUpdateID: snap.LastUpdateID,
		Bids:         string(bids),
		Asks:         string(asks),
	}
	return withRetry(func() error {
		return s.db.Clauses(onConflictDoUpdate("symbol", "timestamp")).Create(&row).Error
	})
}

// LatestOrderbook returns the most recent snapshot for symbol, or
// gorm.ErrRecordNotFound if none has ever been written.
func (s *Store) LatestOrderbook(symbol string) (*model.OrderbookSnapshot, error) {
	var row model.OrderbookRecord
	if err := s.db.Where("symbol = ?", symbol).Order("timestamp DESC").First(&row).Error; err != nil {
		return nil, err
	}

	var bids, asks []model.PriceLevel
	if err := json.Unmarshal([]byte(row.Bids), &bids); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.Asks), &asks); err != nil {
		return nil, err
	}
	return &model.OrderbookSnapshot{
		Symbol:       row.Symbol,
		TimestampMs:  row.TimestampMs,
		LastUpdateID: row.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

// GetCollectorState returns a symbol's ingestion cursor, or
// gorm.ErrRecordNotFound if it has never collected anything.
func (s *Store) GetCollectorState(symbol string) (*model.CollectorState, error) {
	var st model.CollectorState
	if err := s.db.Where("symbol = ?", symbol).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveCollectorState upserts a symbol's ingestion cursor.
func (s *Store) SaveCollectorState(symbol string, lastTimestamp int64, isRealtime bool) error {
	st := model.CollectorState{
		Symbol:        symbol,
		LastTimestamp: lastTimestamp,
		IsRealtime:    isRealtime,
		UpdatedAt:     time.Now().UTC(),
	}
	return withRetry(func() error {
		return s.db.Clauses(onConflictDoUpdate("symbol")).Create(&st).Error
	})
}

// Symbols returns the distinct set of symbols with at least one persisted
// candle, for the GET /symbols endpoint.
func (s *Store) Symbols() ([]string, error) {
	var symbols []string
	err := s.db.Model(&model.CandleRecord{}).Distinct().Pluck("symbol", &symbols).Error
	return symbols, err
}
