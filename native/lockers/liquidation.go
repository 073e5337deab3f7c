package lockers

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// unitPrice returns the pegged value of one whole collateral unit and the
// size of that unit in base units.
func (e *Engine) unitPrice(token common.Address) (price, oneUnit *big.Int, err error) {
	oneUnit, err = e.prices.OneUnit(token)
	if err != nil {
		return nil, nil, err
	}
	price, err = e.prices.PriceOfOneUnit(token)
	if err != nil {
		return nil, nil, err
	}
	return price, oneUnit, nil
}

// payWithPegged collects cost pegged tokens from buyer and burns them.
func (e *Engine) payWithPegged(buyer common.Address, cost *big.Int) error {
	if err := e.pegged.TransferFrom(buyer, cost); err != nil {
		return err
	}
	return e.pegged.Burn(cost)
}

// BuySlashedCollateralOfLocker sells collateral reserved by a thief slash at
// the discount ratio. The buyer pays in pegged tokens, which are burned.
func (e *Engine) BuySlashedCollateralOfLocker(caller, locker common.Address, collateral *big.Int) (*LiquidationResult, error) {
	var result *LiquidationResult
	err := e.guarded("buy_slashed_collateral", func() error {
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		if err := requirePositive(collateral); err != nil {
			return err
		}
		record, err := e.validLocker(locker)
		if err != nil {
			return err
		}
		if collateral.Cmp(record.ReservedTokenForSlash) > 0 {
			return fmt.Errorf("%w: have %s, reserved %s", ErrNotEnoughSlashed, collateral, record.ReservedTokenForSlash)
		}
		price, oneUnit, err := e.unitPrice(record.LockedToken)
		if err != nil {
			return err
		}
		cost := discountedCost(collateral, price, oneUnit, params.PriceWithDiscountRatio)
		if cost.Cmp(record.SlashingCoreBTCAmount) > 0 {
			return fmt.Errorf("%w: cost %s, slashed %s", ErrSlashedCostExceeded, cost, record.SlashingCoreBTCAmount)
		}

		record.ReservedTokenForSlash = new(big.Int).Sub(record.ReservedTokenForSlash, collateral)
		record.SlashingCoreBTCAmount = new(big.Int).Sub(record.SlashingCoreBTCAmount, cost)
		if err := e.putLocker(locker, record); err != nil {
			return err
		}
		if err := e.payWithPegged(caller, cost); err != nil {
			return err
		}
		if err := e.vault.Push(record.LockedToken, caller, collateral); err != nil {
			return err
		}
		e.emit(newSlashedSoldEvent(locker, caller, record.LockedToken, collateral, cost, e.now()))
		result = &LiquidationResult{Collateral: new(big.Int).Set(collateral), Cost: cost}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) maximumBuyable(params *Params, record *Locker) (*big.Int, error) {
	price, oneUnit, err := e.unitPrice(record.LockedToken)
	if err != nil {
		return nil, err
	}
	return maxBuyableOf(record.NetMinted, record.LockedAmount, price, oneUnit, params.LiquidationRatio, params.PriceWithDiscountRatio), nil
}

// MaximumBuyableCollateral returns how much collateral a liquidator may buy
// from an unhealthy locker.
func (e *Engine) MaximumBuyableCollateral(locker common.Address) (*big.Int, error) {
	params, record, err := e.readAccount(locker)
	if err != nil {
		return nil, err
	}
	return e.maximumBuyable(params, record)
}

// LiquidateLocker lets anyone buy collateral of an unhealthy locker at the
// discount ratio, burning the pegged tokens paid and reducing the locker
// liability by the same amount.
func (e *Engine) LiquidateLocker(caller, locker common.Address, collateral *big.Int) (*LiquidationResult, error) {
	var result *LiquidationResult
	err := e.guarded("liquidate_locker", func() error {
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		if isZero(collateral) {
			return ErrZeroValue
		}
		if err := checkAmounts(collateral); err != nil {
			return err
		}
		record, err := e.validLocker(locker)
		if err != nil {
			return err
		}
		health, err := e.healthFactor(params, record)
		if err != nil {
			return err
		}
		if health.Cmp(healthThreshold) >= 0 {
			return fmt.Errorf("%w: health factor %s", ErrHealthy, health)
		}
		maxBuyable, err := e.maximumBuyable(params, record)
		if err != nil {
			return err
		}
		limit := minBig(maxBuyable, record.LockedAmount)
		if collateral.Cmp(limit) > 0 {
			return fmt.Errorf("%w: have %s, max %s", ErrNotEnoughCollateral, collateral, limit)
		}
		price, oneUnit, err := e.unitPrice(record.LockedToken)
		if err != nil {
			return err
		}
		cost := discountedCost(collateral, price, oneUnit, params.PriceWithDiscountRatio)
		if cost.Cmp(record.NetMinted) > 0 {
			return fmt.Errorf("%w: cost %s, net minted %s", ErrCostExceedsNetMinted, cost, record.NetMinted)
		}

		record.NetMinted = new(big.Int).Sub(record.NetMinted, cost)
		record.LockedAmount = new(big.Int).Sub(record.LockedAmount, collateral)
		if err := e.putLocker(locker, record); err != nil {
			return err
		}
		if err := e.payWithPegged(caller, cost); err != nil {
			return err
		}
		if err := e.vault.Push(record.LockedToken, caller, collateral); err != nil {
			return err
		}
		e.telemetry.IncLiquidation()
		e.telemetry.SetNetMinted(locker.Hex(), floatAmount(record.NetMinted))
		e.logger.Info("locker liquidated",
			slog.String("locker", locker.Hex()),
			slog.String("liquidator", caller.Hex()),
			slog.String("collateral", collateral.String()),
			slog.String("cost", cost.String()))
		e.emit(newLiquidatedEvent(locker, caller, record.LockedToken, collateral, cost, e.now()))
		result = &LiquidationResult{Collateral: new(big.Int).Set(collateral), Cost: cost}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
