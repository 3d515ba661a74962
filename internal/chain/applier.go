package chain

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"

	"github.com/linkora-dex/backend/internal/decimal"
	"github.com/linkora-dex/backend/internal/model"
)

// Store is the slice of orderstore.Store the projector depends on, kept as
// an interface so batch application can be unit tested against a fake.
type Store interface {
	cursorStore
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	InsertOrder(tx *gorm.DB, o *model.Order) error
	UpdateOrder(tx *gorm.DB, id uint64, patch map[string]interface{}) error
	GetOrder(tx *gorm.DB, id uint64) (*model.Order, error)
	InsertOrderEvent(tx *gorm.DB, e *model.OrderEvent) error
	IsEventProcessed(tx *gorm.DB, txHash string, logIndex uint) (bool, error)
	MarkEventProcessed(tx *gorm.DB, txHash string, logIndex uint, eventType string) error
}

// Applier applies a sorted batch of chain logs to the order store inside one
// transaction, following the exactly-once and poison-pill rules in
// SPEC_FULL.md §4.8.
type Applier struct {
	store  Store
	topics *Topics
}

// NewApplier creates an Applier over store using topics for dispatch.
func NewApplier(store Store, topics *Topics) *Applier {
	return &Applier{store: store, topics: topics}
}

// sortLogs orders logs by (blockNumber, logIndex) as SPEC_FULL.md §4.8
// mandates — event ordering across topics within a block must follow
// logIndex, never arrival order.
func sortLogs(logs []gethtypes.Log) []gethtypes.Log {
	sorted := make([]gethtypes.Log, len(logs))
	copy(sorted, logs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BlockNumber != sorted[j].BlockNumber {
			return sorted[i].BlockNumber < sorted[j].BlockNumber
		}
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}

// ApplyBatch sorts logs and applies every one inside a single transaction,
// committing the cursor update atomically with them. A crash before commit
// is safe to replay: order mutations are idempotent and the ledger's
// uniqueness constraint rejects a double-apply.
func (a *Applier) ApplyBatch(ctx context.Context, logs []gethtypes.Log, newCursorBlock uint64) error {
	sorted := sortLogs(logs)

	return a.store.Transaction(ctx, func(tx *gorm.DB) error {
		for _, lg := range sorted {
			if err := a.applyOne(tx, lg); err != nil {
				return err
			}
		}

		cursor, err := a.store.GetComponentState(tx, componentName)
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if cursor == nil {
			cursor = &model.ComponentCursor{ComponentName: componentName}
		}
		cursor.LastProcessedBlock = newCursorBlock
		cursor.Status = model.CursorActive
		if len(sorted) > 0 {
			cursor.LastTxHash = sorted[len(sorted)-1].TxHash.Hex()
		}
		return a.store.SaveComponentState(tx, cursor)
	})
}

// applyOne applies a single log, honoring the exactly-once guard and the
// poison-pill policy: a decode failure still marks the event processed so a
// single bad log never stalls the cursor.
func (a *Applier) applyOne(tx *gorm.DB, lg gethtypes.Log) error {
	txHash := lg.TxHash.Hex()

	done, err := a.store.IsEventProcessed(tx, txHash, lg.Index)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	if len(lg.Topics) == 0 {
		return a.store.MarkEventProcessed(tx, txHash, lg.Index, "UNKNOWN")
	}

	topic, ok := a.topics.Lookup(lg.Topics[0])
	if !ok {
		return a.store.MarkEventProcessed(tx, txHash, lg.Index, "UNKNOWN")
	}

	applyErr := a.dispatch(tx, topic, lg)
	if applyErr != nil {
		log.Printf("[chain] poison-pill: failed to apply %v at tx=%s logIndex=%d: %v", topic, txHash, lg.Index, applyErr)
	}

	eventType := topicEventType(topic)
	return a.store.MarkEventProcessed(tx, txHash, lg.Index, eventType)
}

func topicEventType(t EventTopic) string {
	switch t {
	case TopicOrderCreated:
		return string(model.EventCreated)
	case TopicOrderExecuted:
		return string(model.EventExecuted)
	case TopicOrderCancelled:
		return string(model.EventCancelled)
	case TopicOrderModified:
		return string(model.EventModified)
	default:
		return "UNKNOWN"
	}
}

func (a *Applier) dispatch(tx *gorm.DB, topic EventTopic, lg gethtypes.Log) error {
	switch topic {
	case TopicOrderCreated:
		return a.applyCreated(tx, lg)
	case TopicOrderExecuted:
		return a.applyExecuted(tx, lg)
	case TopicOrderCancelled:
		return a.applyCancelled(tx, lg)
	case TopicOrderModified:
		return a.applyModified(tx, lg)
	default:
		return fmt.Errorf("unhandled topic %v", topic)
	}
}

func (a *Applier) applyCreated(tx *gorm.DB, lg gethtypes.Log) error {
	ev, err := DecodeOrderCreated(lg)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	order := &model.Order{
		ID:             ev.ID,
		UserAddress:    ev.UserAddress,
		TokenIn:        ev.TokenIn,
		TokenOut:       ev.TokenOut,
		AmountIn:       decimal.WeiToDec18FromBigInt(ev.AmountIn),
		TargetPrice:    decimal.WeiToDec18FromBigInt(ev.TargetPrice),
		MinAmountOut:   decimal.WeiToDec18FromBigInt(ev.MinAmountOut),
		OrderType:      model.OrderType(ev.OrderType),
		IsLong:         ev.IsLong,
		SelfExecutable: ev.SelfExecutable,
		Status:         model.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		TxHash:         lg.TxHash.Hex(),
		BlockNumber:    lg.BlockNumber,
	}
	if err := a.store.InsertOrder(tx, order); err != nil {
		return err
	}
	return a.store.InsertOrderEvent(tx, &model.OrderEvent{
		OrderID:     ev.ID,
		EventType:   model.EventCreated,
		OldStatus:   "",
		NewStatus:   model.StatusPending,
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		Timestamp:   now,
	})
}

func (a *Applier) applyExecuted(tx *gorm.DB, lg gethtypes.Log) error {
	ev, err := DecodeOrderExecuted(lg)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	patch := map[string]interface{}{
		"status":            model.StatusExecuted,
		"updated_at":        now,
		"executed_at":       now,
		"executor_address":  ev.ExecutorAddress,
		"amount_out":        decimal.WeiToDec18FromBigInt(ev.AmountOut),
		"execution_tx_hash": lg.TxHash.Hex(),
	}
	if err := a.store.UpdateOrder(tx, ev.ID, patch); err != nil {
		return err
	}
	return a.store.InsertOrderEvent(tx, &model.OrderEvent{
		OrderID:     ev.ID,
		EventType:   model.EventExecuted,
		OldStatus:   model.StatusPending,
		NewStatus:   model.StatusExecuted,
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		Timestamp:   now,
	})
}

func (a *Applier) applyCancelled(tx *gorm.DB, lg gethtypes.Log) error {
	ev, err := DecodeOrderCancelled(lg)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := a.store.UpdateOrder(tx, ev.ID, map[string]interface{}{
		"status":     model.StatusCancelled,
		"updated_at": now,
	}); err != nil {
		return err
	}
	return a.store.InsertOrderEvent(tx, &model.OrderEvent{
		OrderID:     ev.ID,
		EventType:   model.EventCancelled,
		OldStatus:   model.StatusPending,
		NewStatus:   model.StatusCancelled,
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		Timestamp:   now,
	})
}

func (a *Applier) applyModified(tx *gorm.DB, lg gethtypes.Log) error {
	ev, err := DecodeOrderModified(lg)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := a.store.UpdateOrder(tx, ev.ID, map[string]interface{}{
		"target_price":   decimal.WeiToDec18FromBigInt(ev.TargetPrice),
		"min_amount_out": decimal.WeiToDec18FromBigInt(ev.MinAmountOut),
		"updated_at":     now,
	}); err != nil {
		return err
	}
	return a.store.InsertOrderEvent(tx, &model.OrderEvent{
		OrderID:     ev.ID,
		EventType:   model.EventModified,
		OldStatus:   model.StatusPending,
		NewStatus:   model.StatusPending,
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		Timestamp:   now,
	})
}
