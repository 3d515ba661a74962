package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeOrderCreated_RoundTrip(t *testing.T) {
	data, err := orderCreatedArgs.Pack(
		big.NewInt(42),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
		big.NewInt(1_000_000_000_000_000_000),
		big.NewInt(2_000_000_000_000_000_000),
		big.NewInt(3_000_000_000_000_000_000),
		uint8(2),
		true,
		false,
	)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	ev, err := DecodeOrderCreated(gethtypes.Log{Data: data})
	if err != nil {
		t.Fatalf("DecodeOrderCreated: %v", err)
	}
	if ev.ID != 42 {
		t.Errorf("ID = %d, want 42", ev.ID)
	}
	if ev.OrderType != 2 {
		t.Errorf("OrderType = %d, want 2", ev.OrderType)
	}
	if !ev.IsLong || ev.SelfExecutable {
		t.Errorf("IsLong=%v SelfExecutable=%v, want true/false", ev.IsLong, ev.SelfExecutable)
	}
	if ev.AmountIn.Cmp(big.NewInt(1_000_000_000_000_000_000)) != 0 {
		t.Errorf("AmountIn = %s, want 1e18", ev.AmountIn.String())
	}
}

func TestDecodeOrderModified_RoundTrip(t *testing.T) {
	data, err := orderModifiedArgs.Pack(big.NewInt(7), big.NewInt(100), big.NewInt(200))
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	ev, err := DecodeOrderModified(gethtypes.Log{Data: data})
	if err != nil {
		t.Fatalf("DecodeOrderModified: %v", err)
	}
	if ev.ID != 7 || ev.TargetPrice.Int64() != 100 || ev.MinAmountOut.Int64() != 200 {
		t.Fatalf("unexpected decode: %+v", ev)
	}
}

func TestDecodeOrderCancelled_RoundTrip(t *testing.T) {
	data, err := orderCancelledArgs.Pack(big.NewInt(9))
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	ev, err := DecodeOrderCancelled(gethtypes.Log{Data: data})
	if err != nil {
		t.Fatalf("DecodeOrderCancelled: %v", err)
	}
	if ev.ID != 9 {
		t.Errorf("ID = %d, want 9", ev.ID)
	}
}
