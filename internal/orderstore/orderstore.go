// Package orderstore implements the Order State Store (C9): the sole
// relational system of record for projected orders, their audit trail, the
// processed-event ledger, component cursors, and the durable market-data
// tables ingestion writes through.
//
// Grounded on ChoSanghyuk-blackholedex/internal/db/transaction_recorder.go's
// MySQLRecorder — same gorm-wraps-a-driver shape, same AutoMigrate-on-open
// and explicit TableName() convention — adapted from MySQL to
// gorm.io/driver/postgres (see DESIGN.md for the driver swap rationale) and
// from a single append-only recorder to a repository spanning seven tables
// plus an explicit-transaction batch-apply method the projector needs.
package orderstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linkora-dex/backend/internal/model"
)

// Store is the gorm-backed implementation of the Order State Store plus its
// MarketDataStore sibling repository, sharing one connection pool.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres via dsn, configures the pool per SPEC_FULL.md §5
// (min 2/max 10 default; the projector opens a second Store with a wider
// pool via OpenWithPool), and auto-migrates every owned table.
func Open(dsn string) (*Store, error) {
	return OpenWithPool(dsn, 2, 10)
}

// OpenWithPool is Open with an explicit pool size, used by the projector's
// entrypoint to request the wider min 10/max 50 pool SPEC_FULL.md §5 calls
// for on that process.
func OpenWithPool(dsn string, minIdle, maxOpen int) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("orderstore: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("orderstore: underlying db: %w", err)
	}
	sqlDB.SetMaxIdleConns(minIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxIdleTime(300 * time.Second)

	if err := db.AutoMigrate(
		&model.Order{},
		&model.OrderEvent{},
		&model.ProcessedEventLedger{},
		&model.ComponentCursor{},
		&model.CandleRecord{},
		&model.OrderbookRecord{},
		&model.CollectorState{},
	); err != nil {
		return nil, fmt.Errorf("orderstore: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying *gorm.DB for callers (e.g. the projector) that
// need to open their own transaction with Begin().
func (s *Store) DB() *gorm.DB { return s.db }

// NewWithDB wraps an already-open *gorm.DB as a Store, skipping Open's
// connect/pool/migrate steps. Used by other packages' tests to drive a Store
// against a sqlmock-backed gorm.DB without a real Postgres instance.
func NewWithDB(db *gorm.DB) *Store { return &Store{db: db} }

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// tx picks the externally-managed transaction handle when present, falling
// back to the store's own pool. Every method below follows this "optional
// tx" shape per SPEC_FULL.md §4.9.
func (s *Store) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// withRetry retries transient connection errors with exponential back-off,
// up to 3 attempts; non-transient errors propagate immediately.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		time.Sleep(time.Duration(1<<attempt) * 100 * time.Millisecond)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return false
	}
	// Postgres driver connection failures surface as generic errors from
	// the database/sql layer; a constraint violation or not-found never
	// matches these and propagates as a non-transient error.
	return errors.Is(err, gorm.ErrInvalidDB) || errors.Is(err, context.DeadlineExceeded)
}

// InsertOrder creates an order row, ignoring the insert if the primary key
// already exists (ON CONFLICT(id) DO NOTHING, per SPEC_FULL.md §4.8).
func (s *Store) InsertOrder(tx *gorm.DB, o *model.Order) error {
	return withRetry(func() error {
		return s.tx(tx).Clauses(onConflictDoNothing("id")).Create(o).Error
	})
}

// UpdateOrder applies patch (a map of column -> value) to the order with id.
func (s *Store) UpdateOrder(tx *gorm.DB, id uint64, patch map[string]interface{}) error {
	return withRetry(func() error {
		return s.tx(tx).Model(&model.Order{}).Where("id = ?", id).Updates(patch).Error
	})
}

// GetOrder returns the order with id, or gorm.ErrRecordNotFound.
func (s *Store) GetOrder(tx *gorm.DB, id uint64) (*model.Order, error) {
	var o model.Order
	err := s.tx(tx).Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertOrderEvent appends an audit row.
func (s *Store) InsertOrderEvent(tx *gorm.DB, e *model.OrderEvent) error {
	return withRetry(func() error {
		return s.tx(tx).Create(e).Error
	})
}

// OrderEvents returns the chronological event list for an order.
func (s *Store) OrderEvents(tx *gorm.DB, orderID uint64) ([]model.OrderEvent, error) {
	var events []model.OrderEvent
	err := s.tx(tx).Where("order_id = ?", orderID).Order("timestamp ASC").Find(&events).Error
	return events, err
}

// IsEventProcessed checks ProcessedEventLedger membership — the exactly-once
// guard checked at the top of event application.
func (s *Store) IsEventProcessed(tx *gorm.DB, txHash string, logIndex uint) (bool, error) {
	var count int64
	err := s.tx(tx).Model(&model.ProcessedEventLedger{}).
		Where("tx_hash = ? AND log_index = ?", txHash, logIndex).
		Count(&count).Error
	return count > 0, err
}

// MarkEventProcessed inserts the ledger row. Called even when decoding the
// event failed — the poison-pill policy in SPEC_FULL.md §4.8 step 4.
func (s *Store) MarkEventProcessed(tx *gorm.DB, txHash string, logIndex uint, eventType string) error {
	return withRetry(func() error {
		return s.tx(tx).Clauses(onConflictDoNothing("tx_hash", "log_index")).Create(&model.ProcessedEventLedger{
			TxHash:      txHash,
			LogIndex:    logIndex,
			EventType:   eventType,
			ProcessedAt: time.Now().UTC(),
		}).Error
	})
}

// GetComponentState reads a component's cursor, returning
// gorm.ErrRecordNotFound if it has never run.
func (s *Store) GetComponentState(tx *gorm.DB, component string) (*model.ComponentCursor, error) {
	var c model.ComponentCursor
	err := s.tx(tx).Where("component_name = ?", component).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveComponentState upserts a component's cursor row.
func (s *Store) SaveComponentState(tx *gorm.DB, c *model.ComponentCursor) error {
	c.UpdatedAt = time.Now().UTC()
	return withRetry(func() error {
		return s.tx(tx).Save(c).Error
	})
}

// ExpireStalePendingOrders transitions PENDING orders older than maxAge to
// EXPIRED and returns the number of rows mutated — the expiry sweeper's
// single statement (SPEC_FULL.md §4.8).
func (s *Store) ExpireStalePendingOrders(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	result := s.db.Model(&model.Order{}).
		Where("status = ? AND created_at < ?", model.StatusPending, cutoff).
		Updates(map[string]interface{}{"status": model.StatusExpired, "updated_at": time.Now().UTC()})
	return result.RowsAffected, result.Error
}

// Transaction runs fn inside one DB transaction, giving fn the *gorm.DB
// handle to pass to every Store method it calls — the externally-managed
// transaction pattern the projector uses to commit a whole batch atomically.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}
