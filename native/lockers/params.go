package lockers

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Params holds the protocol-wide configuration of the registry.
type Params struct {
	Owner                  common.Address
	BurnRouter             common.Address
	PeggedToken            common.Address
	CollateralRatio        uint64
	LiquidationRatio       uint64
	LockerPercentageFee    uint64
	PriceWithDiscountRatio uint64
	SlashCompensationRatio uint64
	InactivationDelay      uint64
}

// Validate enforces the genesis constraints on the parameter set.
func (p Params) Validate() error {
	if p.Owner == (common.Address{}) || p.BurnRouter == (common.Address{}) || p.PeggedToken == (common.Address{}) {
		return ErrZeroAddress
	}
	if p.LiquidationRatio < OneHundredPercent {
		return fmt.Errorf("%w: liquidation ratio %d", ErrBelowOneHundred, p.LiquidationRatio)
	}
	if p.CollateralRatio <= p.LiquidationRatio {
		return ErrCollateralRatio
	}
	if p.LockerPercentageFee > OneHundredPercent {
		return fmt.Errorf("%w: locker fee %d", ErrAboveOneHundred, p.LockerPercentageFee)
	}
	if p.PriceWithDiscountRatio == 0 {
		return ErrZeroAmount
	}
	if p.PriceWithDiscountRatio > OneHundredPercent {
		return fmt.Errorf("%w: discount ratio %d", ErrAboveOneHundred, p.PriceWithDiscountRatio)
	}
	return nil
}
