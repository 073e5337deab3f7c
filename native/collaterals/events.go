package collaterals

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/core/types"
)

const (
	EventTypeAssetAdded      = "collaterals.asset_added"
	EventTypeAssetRemoved    = "collaterals.asset_removed"
	EventTypeMinLockedAmount = "collaterals.min_locked_amount"
	EventTypeLockersSet      = "collaterals.lockers_set"
	EventTypeOwnership       = "collaterals.ownership_transferred"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newAssetAddedEvent(entry Entry, index int) *types.Event {
	return &types.Event{
		Type: EventTypeAssetAdded,
		Attributes: map[string]string{
			"token":             entry.Token.Hex(),
			"min_locked_amount": amountString(entry.MinLockedAmount),
			"index":             strconv.Itoa(index),
		},
	}
}

func newAssetRemovedEvent(token common.Address) *types.Event {
	return &types.Event{
		Type:       EventTypeAssetRemoved,
		Attributes: map[string]string{"token": token.Hex()},
	}
}

func newMinLockedAmountEvent(token common.Address, previous, updated *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMinLockedAmount,
		Attributes: map[string]string{
			"token":    token.Hex(),
			"previous": amountString(previous),
			"updated":  amountString(updated),
		},
	}
}

func newLockersSetEvent(previous, updated common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeLockersSet,
		Attributes: map[string]string{
			"previous": previous.Hex(),
			"updated":  updated.Hex(),
		},
	}
}

func newOwnershipEvent(previous, updated common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeOwnership,
		Attributes: map[string]string{
			"previous": previous.Hex(),
			"updated":  updated.Hex(),
		},
	}
}
