package lockers

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) grantRole(op, role string, caller, account common.Address) error {
	return e.atomic(op, func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		if account == (common.Address{}) {
			return ErrZeroAddress
		}
		if err := e.state.SetRole(role, account.Bytes()); err != nil {
			return fmt.Errorf("lockers: %w", err)
		}
		e.emit(newRoleEvent(EventTypeRoleGranted, role, account))
		return nil
	})
}

func (e *Engine) revokeRole(op, role string, caller, account common.Address) error {
	return e.atomic(op, func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		if account == (common.Address{}) {
			return ErrZeroAddress
		}
		if err := e.state.RemoveRole(role, account.Bytes()); err != nil {
			return fmt.Errorf("lockers: %w", err)
		}
		e.emit(newRoleEvent(EventTypeRoleRevoked, role, account))
		return nil
	})
}

func (e *Engine) AddMinter(caller, account common.Address) error {
	return e.grantRole("add_minter", RoleMinter, caller, account)
}

func (e *Engine) RemoveMinter(caller, account common.Address) error {
	return e.revokeRole("remove_minter", RoleMinter, caller, account)
}

func (e *Engine) AddBurner(caller, account common.Address) error {
	return e.grantRole("add_burner", RoleBurner, caller, account)
}

func (e *Engine) RemoveBurner(caller, account common.Address) error {
	return e.revokeRole("remove_burner", RoleBurner, caller, account)
}

// IsMinter reports whether account holds the minter role.
func (e *Engine) IsMinter(account common.Address) bool {
	return e.readable() == nil && e.state.HasRole(RoleMinter, account.Bytes())
}

// IsBurner reports whether account holds the burner role.
func (e *Engine) IsBurner(account common.Address) bool {
	return e.readable() == nil && e.state.HasRole(RoleBurner, account.Bytes())
}

// Pause halts every user entry point until Unpause is called.
func (e *Engine) Pause(caller common.Address) error {
	return e.atomic("pause", func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		if e.state.IsPaused(moduleName) {
			return ErrPaused
		}
		if err := e.state.SetPaused(moduleName, true); err != nil {
			return err
		}
		e.emit(newPauseEvent(EventTypePaused, caller))
		return nil
	})
}

func (e *Engine) Unpause(caller common.Address) error {
	return e.atomic("unpause", func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		if !e.state.IsPaused(moduleName) {
			return ErrNotPaused
		}
		if err := e.state.SetPaused(moduleName, false); err != nil {
			return err
		}
		e.emit(newPauseEvent(EventTypeUnpaused, caller))
		return nil
	})
}

// Paused reports whether the registry is halted.
func (e *Engine) Paused() bool {
	return e.readable() == nil && e.state.IsPaused(moduleName)
}

// updateParam applies an owner-only change to the parameter set and records
// the previous and new value.
func (e *Engine) updateParam(caller common.Address, name string, apply func(p *Params) (previous, updated string, err error)) error {
	return e.atomic("set_"+name, func() error {
		params, err := e.requireOwner(caller)
		if err != nil {
			return err
		}
		previous, updated, err := apply(params)
		if err != nil {
			return err
		}
		if err := e.putParams(params); err != nil {
			return err
		}
		e.emit(newParamUpdatedEvent(name, previous, updated))
		return nil
	})
}

func (e *Engine) SetLockerPercentageFee(caller common.Address, fee uint64) error {
	return e.updateParam(caller, "locker_percentage_fee", func(p *Params) (string, string, error) {
		if fee > OneHundredPercent {
			return "", "", fmt.Errorf("%w: %d", ErrAboveOneHundred, fee)
		}
		previous := p.LockerPercentageFee
		p.LockerPercentageFee = fee
		return uintString(previous), uintString(fee), nil
	})
}

func (e *Engine) SetSlashCompensationRatio(caller common.Address, ratio uint64) error {
	return e.updateParam(caller, "slash_compensation_ratio", func(p *Params) (string, string, error) {
		previous := p.SlashCompensationRatio
		p.SlashCompensationRatio = ratio
		return uintString(previous), uintString(ratio), nil
	})
}

func (e *Engine) SetPriceWithDiscountRatio(caller common.Address, ratio uint64) error {
	return e.updateParam(caller, "price_with_discount_ratio", func(p *Params) (string, string, error) {
		if ratio == 0 {
			return "", "", ErrZeroAmount
		}
		if ratio > OneHundredPercent {
			return "", "", fmt.Errorf("%w: %d", ErrAboveOneHundred, ratio)
		}
		previous := p.PriceWithDiscountRatio
		p.PriceWithDiscountRatio = ratio
		return uintString(previous), uintString(ratio), nil
	})
}

// SetCollateralRatio updates the minting collateral ratio, which must stay
// above the liquidation ratio.
func (e *Engine) SetCollateralRatio(caller common.Address, ratio uint64) error {
	return e.updateParam(caller, "collateral_ratio", func(p *Params) (string, string, error) {
		if ratio <= p.LiquidationRatio {
			return "", "", ErrCollateralRatio
		}
		previous := p.CollateralRatio
		p.CollateralRatio = ratio
		return uintString(previous), uintString(ratio), nil
	})
}

// SetLiquidationRatio updates the liquidation ratio, which must stay below the
// collateral ratio.
func (e *Engine) SetLiquidationRatio(caller common.Address, ratio uint64) error {
	return e.updateParam(caller, "liquidation_ratio", func(p *Params) (string, string, error) {
		if p.CollateralRatio <= ratio {
			return "", "", ErrCollateralRatio
		}
		previous := p.LiquidationRatio
		p.LiquidationRatio = ratio
		return uintString(previous), uintString(ratio), nil
	})
}

func (e *Engine) SetInactivationDelay(caller common.Address, delay uint64) error {
	return e.updateParam(caller, "inactivation_delay", func(p *Params) (string, string, error) {
		previous := p.InactivationDelay
		p.InactivationDelay = delay
		return uintString(previous), uintString(delay), nil
	})
}

func (e *Engine) SetBurnRouter(caller, router common.Address) error {
	return e.updateParam(caller, "burn_router", func(p *Params) (string, string, error) {
		if router == (common.Address{}) {
			return "", "", ErrZeroAddress
		}
		previous := p.BurnRouter
		p.BurnRouter = router
		return previous.Hex(), router.Hex(), nil
	})
}

// TransferOwnership hands registry administration to newOwner.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	return e.atomic("transfer_ownership", func() error {
		params, err := e.requireOwner(caller)
		if err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return ErrZeroAddress
		}
		previous := params.Owner
		params.Owner = newOwner
		if err := e.putParams(params); err != nil {
			return err
		}
		e.emit(newOwnershipEvent(previous, newOwner))
		return nil
	})
}
