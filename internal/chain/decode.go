package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// None of the four trading-contract events index any argument beyond the
// topic hash itself, so every field lives in Log.Data and is unpacked with a
// plain abi.Arguments tuple rather than a generated contract binding.

var (
	orderCreatedArgs   abi.Arguments
	orderExecutedArgs  abi.Arguments
	orderCancelledArgs abi.Arguments
	orderModifiedArgs  abi.Arguments
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("chain: bad abi type " + t + ": " + err.Error())
	}
	return typ
}

func init() {
	u256 := mustType("uint256")
	addr := mustType("address")
	u8 := mustType("uint8")
	boolean := mustType("bool")

	orderCreatedArgs = abi.Arguments{
		{Type: u256}, {Type: addr}, {Type: addr}, {Type: addr},
		{Type: u256}, {Type: u256}, {Type: u256}, {Type: u8}, {Type: boolean}, {Type: boolean},
	}
	orderExecutedArgs = abi.Arguments{{Type: u256}, {Type: addr}, {Type: u256}}
	orderCancelledArgs = abi.Arguments{{Type: u256}}
	orderModifiedArgs = abi.Arguments{{Type: u256}, {Type: u256}, {Type: u256}}
}

// OrderCreatedEvent is the decoded payload of an OrderCreated log.
type OrderCreatedEvent struct {
	ID             uint64
	UserAddress    string
	TokenIn        string
	TokenOut       string
	AmountIn       *big.Int
	TargetPrice    *big.Int
	MinAmountOut   *big.Int
	OrderType      uint8
	IsLong         bool
	SelfExecutable bool
}

// OrderExecutedEvent is the decoded payload of an OrderExecuted log.
type OrderExecutedEvent struct {
	ID              uint64
	ExecutorAddress string
	AmountOut       *big.Int
}

// OrderCancelledEvent is the decoded payload of an OrderCancelled log.
type OrderCancelledEvent struct {
	ID uint64
}

// OrderModifiedEvent is the decoded payload of an OrderModified log.
type OrderModifiedEvent struct {
	ID           uint64
	TargetPrice  *big.Int
	MinAmountOut *big.Int
}

// DecodeOrderCreated unpacks log.Data per the OrderCreated signature.
func DecodeOrderCreated(log gethtypes.Log) (*OrderCreatedEvent, error) {
	vals, err := orderCreatedArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("decode OrderCreated: %w", err)
	}
	return &OrderCreatedEvent{
		ID:             vals[0].(*big.Int).Uint64(),
		UserAddress:    vals[1].(common.Address).Hex(),
		TokenIn:        vals[2].(common.Address).Hex(),
		TokenOut:       vals[3].(common.Address).Hex(),
		AmountIn:       vals[4].(*big.Int),
		TargetPrice:    vals[5].(*big.Int),
		MinAmountOut:   vals[6].(*big.Int),
		OrderType:      vals[7].(uint8),
		IsLong:         vals[8].(bool),
		SelfExecutable: vals[9].(bool),
	}, nil
}

// DecodeOrderExecuted unpacks log.Data per the OrderExecuted signature.
func DecodeOrderExecuted(log gethtypes.Log) (*OrderExecutedEvent, error) {
	vals, err := orderExecutedArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("decode OrderExecuted: %w", err)
	}
	return &OrderExecutedEvent{
		ID:              vals[0].(*big.Int).Uint64(),
		ExecutorAddress: vals[1].(common.Address).Hex(),
		AmountOut:       vals[2].(*big.Int),
	}, nil
}

// DecodeOrderCancelled unpacks log.Data per the OrderCancelled signature.
func DecodeOrderCancelled(log gethtypes.Log) (*OrderCancelledEvent, error) {
	vals, err := orderCancelledArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("decode OrderCancelled: %w", err)
	}
	return &OrderCancelledEvent{ID: vals[0].(*big.Int).Uint64()}, nil
}

// DecodeOrderModified unpacks log.Data per the OrderModified signature.
func DecodeOrderModified(log gethtypes.Log) (*OrderModifiedEvent, error) {
	vals, err := orderModifiedArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("decode OrderModified: %w", err)
	}
	return &OrderModifiedEvent{
		ID:           vals[0].(*big.Int).Uint64(),
		TargetPrice:  vals[1].(*big.Int),
		MinAmountOut: vals[2].(*big.Int),
	}, nil
}
