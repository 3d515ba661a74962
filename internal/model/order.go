package model

import (
	"time"

	"github.com/linkora-dex/backend/internal/decimal"
)

// OrderType mirrors the on-chain order_type enum.
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeStopLoss
	OrderTypeMarket
	OrderTypeConditional
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeStopLoss:
		return "STOP_LOSS"
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeConditional:
		return "CONDITIONAL"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus is the order's lifecycle state. Transitions are one-way:
// PENDING -> {EXECUTED, CANCELLED, EXPIRED}; the latter three are terminal.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusExecuted  OrderStatus = "EXECUTED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusExpired   OrderStatus = "EXPIRED"
)

// Order is the projected on-chain order, owned exclusively by the Order
// State Store and mutated only by the Event Projector and the expiry
// sweeper.
type Order struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	UserAddress string `gorm:"index" json:"user_address"`
	TokenIn     string `json:"token_in"`
	TokenOut    string `json:"token_out"`

	AmountIn     decimal.Dec18 `json:"amount_in"`
	TargetPrice  decimal.Dec18 `json:"target_price"`
	MinAmountOut decimal.Dec18 `json:"min_amount_out"`
	AmountOut    decimal.Dec18 `json:"amount_out"`

	OrderType       OrderType   `json:"order_type"`
	IsLong          bool        `json:"is_long"`
	SelfExecutable  bool        `json:"self_executable"`
	Status          OrderStatus `gorm:"index" json:"status"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	TxHash           string `json:"tx_hash"`
	BlockNumber      uint64 `json:"block_number"`
	ExecutorAddress  string `json:"executor_address,omitempty"`
	ExecutionTxHash  string `json:"execution_tx_hash,omitempty"`
}

// TableName pins the gorm table name rather than relying on pluralization.
func (Order) TableName() string { return "orders" }

// OrderEventType names the kind of mutation an OrderEvent records.
type OrderEventType string

const (
	EventCreated  OrderEventType = "CREATED"
	EventExecuted OrderEventType = "EXECUTED"
	EventCancelled OrderEventType = "CANCELLED"
	EventModified OrderEventType = "MODIFIED"
)

// OrderEvent is an append-only audit row written in the same transaction as
// the Order mutation that produced it.
type OrderEvent struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint64         `gorm:"index" json:"order_id"`
	EventType   OrderEventType `json:"event_type"`
	OldStatus   OrderStatus    `json:"old_status"`
	NewStatus   OrderStatus    `json:"new_status"`
	TxHash      string         `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	Timestamp   time.Time      `json:"timestamp"`
	RawPayload  string         `gorm:"type:jsonb" json:"raw_payload"`
}

func (OrderEvent) TableName() string { return "order_events" }

// ProcessedEventLedger enforces the exactly-once guard on (tx_hash,
// log_index): a row's presence means the event was already applied.
type ProcessedEventLedger struct {
	TxHash      string    `gorm:"primaryKey" json:"tx_hash"`
	LogIndex    uint      `gorm:"primaryKey" json:"log_index"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (ProcessedEventLedger) TableName() string { return "processed_events" }

// CursorStatus is the Event Projector's per-component state machine value.
type CursorStatus string

const (
	CursorActive   CursorStatus = "ACTIVE"
	CursorError    CursorStatus = "ERROR"
	CursorRecovery CursorStatus = "RECOVERY"
	CursorReset    CursorStatus = "RESET"
)

// ComponentCursor is the single durable row per named component tracking how
// far it has progressed through the chain and whether it needs a catch-up
// pass before resuming steady-state polling.
type ComponentCursor struct {
	ComponentName     string       `gorm:"primaryKey" json:"component_name"`
	LastProcessedBlock uint64      `json:"last_processed_block"`
	LastTxHash        string       `json:"last_tx_hash"`
	Status            CursorStatus `json:"status"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func (ComponentCursor) TableName() string { return "system_state" }
