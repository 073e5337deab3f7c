package lockers

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/core/types"
)

const (
	EventTypeRequested           = "lockers.requested"
	EventTypeRequestRevoked      = "lockers.request_revoked"
	EventTypeAdded               = "lockers.added"
	EventTypeInactivation        = "lockers.inactivation_requested"
	EventTypeActivated           = "lockers.activated"
	EventTypeRemoved             = "lockers.removed"
	EventTypeCollateralAdded     = "lockers.collateral_added"
	EventTypeCollateralRemoved   = "lockers.collateral_removed"
	EventTypeSlashed             = "lockers.slashed"
	EventTypeSlashedSold         = "lockers.slashed_collateral_sold"
	EventTypeLiquidated          = "lockers.liquidated"
	EventTypeMinted              = "lockers.minted"
	EventTypeBurned              = "lockers.burned"
	EventTypeRoleGranted         = "lockers.role_granted"
	EventTypeRoleRevoked         = "lockers.role_revoked"
	EventTypePaused              = "lockers.paused"
	EventTypeUnpaused            = "lockers.unpaused"
	EventTypeParamUpdated        = "lockers.param_updated"
	EventTypeOwnershipTransfered = "lockers.ownership_transferred"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintString(v uint64) string { return strconv.FormatUint(v, 10) }

func newEvent(eventType string, locker common.Address, attrs map[string]string) *types.Event {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	if locker != (common.Address{}) {
		attrs["locker"] = locker.Hex()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newRequestedEvent(locker common.Address, record *Locker) *types.Event {
	return newEvent(EventTypeRequested, locker, map[string]string{
		"locking_script": hex.EncodeToString(record.LockingScript),
		"rescue_type":    record.RescueType().String(),
		"token":          record.LockedToken.Hex(),
		"amount":         amountString(record.LockedAmount),
	})
}

func newRequestRevokedEvent(locker, token common.Address, amount *big.Int) *types.Event {
	return newEvent(EventTypeRequestRevoked, locker, map[string]string{
		"token":  token.Hex(),
		"amount": amountString(amount),
	})
}

func newAddedEvent(locker common.Address, record *Locker, at uint64) *types.Event {
	return newEvent(EventTypeAdded, locker, map[string]string{
		"locking_script": hex.EncodeToString(record.LockingScript),
		"token":          record.LockedToken.Hex(),
		"amount":         amountString(record.LockedAmount),
		"timestamp":      uintString(at),
	})
}

func newInactivationEvent(locker common.Address, at, inactivation uint64) *types.Event {
	return newEvent(EventTypeInactivation, locker, map[string]string{
		"timestamp":              uintString(at),
		"inactivation_timestamp": uintString(inactivation),
	})
}

func newActivatedEvent(locker common.Address, at uint64) *types.Event {
	return newEvent(EventTypeActivated, locker, map[string]string{
		"timestamp": uintString(at),
	})
}

func newRemovedEvent(locker, token common.Address, amount *big.Int) *types.Event {
	return newEvent(EventTypeRemoved, locker, map[string]string{
		"token":  token.Hex(),
		"amount": amountString(amount),
	})
}

func newCollateralAddedEvent(locker, addedBy, token common.Address, amount, total *big.Int) *types.Event {
	return newEvent(EventTypeCollateralAdded, locker, map[string]string{
		"added_by": addedBy.Hex(),
		"token":    token.Hex(),
		"amount":   amountString(amount),
		"total":    amountString(total),
	})
}

func newCollateralRemovedEvent(locker, token common.Address, amount, total *big.Int) *types.Event {
	return newEvent(EventTypeCollateralRemoved, locker, map[string]string{
		"token":  token.Hex(),
		"amount": amountString(amount),
		"total":  amountString(total),
	})
}

type slashDetails struct {
	locker          common.Address
	token           common.Address
	rewardRecipient common.Address
	recipient       common.Address
	reward          *big.Int
	amount          *big.Int
	collateral      *big.Int
	timestamp       uint64
	idle            bool
}

func newSlashedEvent(d slashDetails) *types.Event {
	return newEvent(EventTypeSlashed, d.locker, map[string]string{
		"token":            d.token.Hex(),
		"reward":           amountString(d.reward),
		"reward_recipient": d.rewardRecipient.Hex(),
		"amount":           amountString(d.amount),
		"recipient":        d.recipient.Hex(),
		"collateral":       amountString(d.collateral),
		"timestamp":        uintString(d.timestamp),
		"is_idle":          strconv.FormatBool(d.idle),
	})
}

func newSlashedSoldEvent(locker, buyer, token common.Address, collateral, cost *big.Int, at uint64) *types.Event {
	return newEvent(EventTypeSlashedSold, locker, map[string]string{
		"buyer":      buyer.Hex(),
		"token":      token.Hex(),
		"collateral": amountString(collateral),
		"cost":       amountString(cost),
		"timestamp":  uintString(at),
	})
}

func newLiquidatedEvent(locker, liquidator, token common.Address, collateral, cost *big.Int, at uint64) *types.Event {
	return newEvent(EventTypeLiquidated, locker, map[string]string{
		"liquidator": liquidator.Hex(),
		"token":      token.Hex(),
		"collateral": amountString(collateral),
		"cost":       amountString(cost),
		"timestamp":  uintString(at),
	})
}

func newMintedEvent(locker, recipient common.Address, script []byte, txRef common.Hash, amount, fee *big.Int) *types.Event {
	return newEvent(EventTypeMinted, locker, map[string]string{
		"locking_script": hex.EncodeToString(script),
		"recipient":      recipient.Hex(),
		"tx_ref":         txRef.Hex(),
		"amount":         amountString(amount),
		"fee":            amountString(fee),
	})
}

func newBurnedEvent(locker, caller common.Address, script []byte, amount, fee *big.Int) *types.Event {
	return newEvent(EventTypeBurned, locker, map[string]string{
		"locking_script": hex.EncodeToString(script),
		"caller":         caller.Hex(),
		"amount":         amountString(amount),
		"fee":            amountString(fee),
	})
}

func newRoleEvent(eventType, role string, account common.Address) *types.Event {
	return newEvent(eventType, common.Address{}, map[string]string{
		"role":    role,
		"account": account.Hex(),
	})
}

func newPauseEvent(eventType string, by common.Address) *types.Event {
	return newEvent(eventType, common.Address{}, map[string]string{"by": by.Hex()})
}

func newParamUpdatedEvent(name, previous, updated string) *types.Event {
	return newEvent(EventTypeParamUpdated, common.Address{}, map[string]string{
		"param":    name,
		"previous": previous,
		"updated":  updated,
	})
}

func newOwnershipEvent(previous, updated common.Address) *types.Event {
	return newEvent(EventTypeOwnershipTransfered, common.Address{}, map[string]string{
		"previous": previous.Hex(),
		"updated":  updated.Hex(),
	})
}
