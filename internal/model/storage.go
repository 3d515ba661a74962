package model

import "time"

// CandleRecord is the durable row form of a 1-minute candle, persisted by
// the Ingestion Workers through the Order State Store's MarketDataStore
// sibling repository. Distinct from Candle (the in-memory/wire
// aggregation type) because the persisted table is keyed and constrained
// independently of timeframe — only 1-minute bars are ever written here,
// higher timeframes are derived on read or in memory.
type CandleRecord struct {
	Symbol      string    `gorm:"primaryKey" json:"symbol"`
	TimestampMs int64     `gorm:"primaryKey;column:timestamp" json:"timestamp"`
	Open        string    `json:"open"`
	High        string    `json:"high"`
	Low         string    `json:"low"`
	Close       string    `json:"close"`
	Volume      string    `json:"volume"`
	QuoteVolume string    `json:"quote_volume"`
	Trades      int32     `json:"trades"`
}

func (CandleRecord) TableName() string { return "candles" }

// OrderbookRecord is the durable row form of an order book snapshot. Bids
// and asks are stored as JSON-encoded arrays of PriceLevel.
type OrderbookRecord struct {
	Symbol       string `gorm:"primaryKey" json:"symbol"`
	TimestampMs  int64  `gorm:"primaryKey;column:timestamp" json:"timestamp"`
	LastUpdateID int64  `json:"last_update_id"`
	Bids         string `gorm:"type:jsonb" json:"bids"`
	Asks         string `gorm:"type:jsonb" json:"asks"`
}

func (OrderbookRecord) TableName() string { return "orderbook_data" }

// CollectorState tracks each ingestion worker's progress through its
// symbol's history, so a restart resumes historical catch-up rather than
// re-fetching from the configured epoch.
type CollectorState struct {
	Symbol        string    `gorm:"primaryKey" json:"symbol"`
	LastTimestamp int64     `json:"last_timestamp"`
	IsRealtime    bool      `json:"is_realtime"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (CollectorState) TableName() string { return "collector_state" }
