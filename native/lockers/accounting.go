package lockers

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) collateralValue(record *Locker) (*big.Int, error) {
	if isZero(record.LockedAmount) {
		return big.NewInt(0), nil
	}
	return e.prices.CollateralToPegged(record.LockedToken, record.LockedAmount)
}

func (e *Engine) capacity(params *Params, record *Locker) (*big.Int, error) {
	if !record.IsLocker {
		return big.NewInt(0), nil
	}
	value, err := e.collateralValue(record)
	if err != nil {
		return nil, err
	}
	return capacityOf(value, record.NetMinted, params.CollateralRatio), nil
}

func (e *Engine) healthFactor(params *Params, record *Locker) (*big.Int, error) {
	if isZero(record.NetMinted) || params.LiquidationRatio == 0 {
		return nil, ErrHealthUndefined
	}
	value, err := e.collateralValue(record)
	if err != nil {
		return nil, err
	}
	return healthFactorOf(value, record.NetMinted, params.LiquidationRatio)
}

func (e *Engine) readAccount(addr common.Address) (*Params, *Locker, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	params, err := e.loadParams()
	if err != nil {
		return nil, nil, err
	}
	record, err := e.loadLocker(addr)
	if err != nil {
		return nil, nil, err
	}
	return params, record, nil
}

// Capacity returns how many more pegged units the locker may mint.
func (e *Engine) Capacity(locker common.Address) (*big.Int, error) {
	params, record, err := e.readAccount(locker)
	if err != nil {
		return nil, err
	}
	return e.capacity(params, record)
}

// HealthFactor returns the locker health in basis points. It fails with
// ErrHealthUndefined when the locker has nothing minted.
func (e *Engine) HealthFactor(locker common.Address) (*big.Int, error) {
	params, record, err := e.readAccount(locker)
	if err != nil {
		return nil, err
	}
	return e.healthFactor(params, record)
}

// CollateralValue returns the locked collateral valued in pegged units.
func (e *Engine) CollateralValue(locker common.Address) (*big.Int, error) {
	_, record, err := e.readAccount(locker)
	if err != nil {
		return nil, err
	}
	return e.collateralValue(record)
}

// PriceOfOneUnitOfCollateralInBTC returns the pegged value of one whole unit
// of the collateral token.
func (e *Engine) PriceOfOneUnitOfCollateralInBTC(token common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.prices.PriceOfOneUnit(token)
}

// MaxRemovableCollateral returns the collateral an inactive locker could
// withdraw without breaching the collateral ratio.
func (e *Engine) MaxRemovableCollateral(locker common.Address) (*big.Int, error) {
	params, record, err := e.readAccount(locker)
	if err != nil {
		return nil, err
	}
	value, err := e.collateralValue(record)
	if err != nil {
		return nil, err
	}
	return maxRemovableOf(record.LockedAmount, value, record.NetMinted, params.CollateralRatio), nil
}

// AddCollateral tops up the collateral of a locker. Anyone may call it.
func (e *Engine) AddCollateral(caller, locker common.Address, amount, value *big.Int) error {
	return e.guarded("add_collateral", func() error {
		if locker == (common.Address{}) {
			return ErrZeroAddress
		}
		if err := requirePositive(amount, value); err != nil {
			return err
		}
		record, err := e.loadLocker(locker)
		if err != nil {
			return err
		}
		if !record.IsLocker {
			return ErrNoLocker
		}
		if err := checkIncomingValue(record.LockedToken, amount, value); err != nil {
			return err
		}
		record.LockedAmount = new(big.Int).Add(record.LockedAmount, amount)
		if err := e.putLocker(locker, record); err != nil {
			return err
		}
		if err := e.vault.Pull(record.LockedToken, caller, amount); err != nil {
			return err
		}
		e.emit(newCollateralAddedEvent(locker, caller, record.LockedToken, amount, record.LockedAmount))
		return nil
	})
}

// RemoveCollateral withdraws part of an inactive locker's collateral.
func (e *Engine) RemoveCollateral(caller common.Address, amount *big.Int) error {
	return e.guarded("remove_collateral", func() error {
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		record, err := e.loadLocker(caller)
		if err != nil {
			return err
		}
		if !record.IsLocker {
			return ErrNoLocker
		}
		if isActive(record, e.now()) {
			return ErrStillActive
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		value, err := e.collateralValue(record)
		if err != nil {
			return err
		}
		maxRemovable := maxRemovableOf(record.LockedAmount, value, record.NetMinted, params.CollateralRatio)
		if amount.Cmp(maxRemovable) > 0 {
			return fmt.Errorf("%w: have %s, max %s", ErrMaxRemovable, amount, maxRemovable)
		}
		remaining := new(big.Int).Sub(record.LockedAmount, amount)
		min, err := e.catalog.MinLockedAmount(record.LockedToken)
		if err != nil {
			return err
		}
		if remaining.Cmp(min) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrBelowMinCollateral, remaining, min)
		}
		record.LockedAmount = remaining
		if err := e.putLocker(caller, record); err != nil {
			return err
		}
		if err := e.vault.Push(record.LockedToken, caller, amount); err != nil {
			return err
		}
		e.emit(newCollateralRemovedEvent(caller, record.LockedToken, amount, remaining))
		return nil
	})
}
