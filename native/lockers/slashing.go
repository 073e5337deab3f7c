package lockers

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) requireBurnRouter(caller common.Address) (*Params, error) {
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if caller != params.BurnRouter {
		return nil, ErrNotBurnRouter
	}
	return params, nil
}

func (e *Engine) validLocker(addr common.Address) (*Locker, error) {
	record, err := e.loadLocker(addr)
	if err != nil {
		return nil, err
	}
	if !record.IsLocker {
		return nil, ErrNotValidLocker
	}
	return record, nil
}

func floatAmount(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// SlashIdleLocker penalises a locker that failed to honour a burn request.
// The shortfall, inflated by the slash compensation ratio, is converted into
// collateral and paid out immediately: rewardRecipient receives the share
// weighted by rewardAmount and recipient the rest. Burn router only.
func (e *Engine) SlashIdleLocker(caller, locker common.Address, rewardAmount *big.Int, rewardRecipient common.Address, amount *big.Int, recipient common.Address) (*SlashResult, error) {
	var result *SlashResult
	err := e.guarded("slash_idle_locker", func() error {
		params, err := e.requireBurnRouter(caller)
		if err != nil {
			return err
		}
		record, err := e.validLocker(locker)
		if err != nil {
			return err
		}
		if err := checkAmounts(rewardAmount, amount); err != nil {
			return err
		}
		reward := copyAmount(rewardAmount)
		inflated := mulDiv(copyAmount(amount), bps(OneHundredPercent+params.SlashCompensationRatio), oneHundredBps)
		equivalent, err := e.prices.PeggedToCollateral(record.LockedToken, new(big.Int).Add(reward, inflated))
		if err != nil {
			return err
		}
		if equivalent.Cmp(record.LockedAmount) > 0 {
			equivalent = new(big.Int).Set(record.LockedAmount)
		}
		rewardPaid, recipientAmount := idleSplit(equivalent, reward, inflated)

		record.LockedAmount = new(big.Int).Sub(record.LockedAmount, equivalent)
		if err := e.putLocker(locker, record); err != nil {
			return err
		}
		if rewardPaid.Sign() > 0 {
			if err := e.vault.Push(record.LockedToken, rewardRecipient, rewardPaid); err != nil {
				return err
			}
		}
		if recipientAmount.Sign() > 0 {
			if err := e.vault.Push(record.LockedToken, recipient, recipientAmount); err != nil {
				return err
			}
		}
		now := e.now()
		e.telemetry.AddSlashed("idle", floatAmount(equivalent))
		e.logger.Warn("idle locker slashed",
			slog.String("locker", locker.Hex()),
			slog.String("collateral", equivalent.String()),
			slog.String("amount", copyAmount(amount).String()))
		e.emit(newSlashedEvent(slashDetails{
			locker:          locker,
			token:           record.LockedToken,
			rewardRecipient: rewardRecipient,
			recipient:       recipient,
			reward:          rewardPaid,
			amount:          amount,
			collateral:      equivalent,
			timestamp:       now,
			idle:            true,
		}))
		result = &SlashResult{RewardPaid: rewardPaid, RecipientAmount: recipientAmount, Reserved: big.NewInt(0)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SlashThiefLocker penalises a locker proven to have moved custodied Bitcoin.
// Collateral worth amount scaled by the liquidation ratio is reserved for
// sale to pegged token holders and the reporter reward is paid out of the
// remaining collateral. Burn router only.
func (e *Engine) SlashThiefLocker(caller, locker common.Address, rewardAmount *big.Int, rewardRecipient common.Address, amount *big.Int) (*SlashResult, error) {
	var result *SlashResult
	err := e.guarded("slash_thief_locker", func() error {
		params, err := e.requireBurnRouter(caller)
		if err != nil {
			return err
		}
		record, err := e.validLocker(locker)
		if err != nil {
			return err
		}
		if err := requirePositive(amount, rewardAmount); err != nil {
			return err
		}
		equivalent, err := e.prices.PeggedToCollateral(record.LockedToken, amount)
		if err != nil {
			return err
		}
		reward, reserved := thiefSplit(equivalent, copyAmount(rewardAmount), amount, record.LockedAmount, params.LiquidationRatio)
		slashed := new(big.Int).Add(reward, reserved)

		record.LockedAmount = new(big.Int).Sub(record.LockedAmount, slashed)
		record.ReservedTokenForSlash = new(big.Int).Add(record.ReservedTokenForSlash, reserved)
		record.SlashingCoreBTCAmount = new(big.Int).Add(record.SlashingCoreBTCAmount, amount)
		record.NetMinted = new(big.Int).Sub(record.NetMinted, amount)
		if record.NetMinted.Sign() < 0 {
			record.NetMinted = big.NewInt(0)
		}
		if err := e.putLocker(locker, record); err != nil {
			return err
		}
		if reward.Sign() > 0 {
			if err := e.vault.Push(record.LockedToken, rewardRecipient, reward); err != nil {
				return err
			}
		}
		now := e.now()
		e.telemetry.AddSlashed("thief", floatAmount(slashed))
		e.telemetry.SetNetMinted(locker.Hex(), floatAmount(record.NetMinted))
		e.logger.Warn("thief locker slashed",
			slog.String("locker", locker.Hex()),
			slog.String("reserved", reserved.String()),
			slog.String("amount", amount.String()))
		e.emit(newSlashedEvent(slashDetails{
			locker:          locker,
			token:           record.LockedToken,
			rewardRecipient: rewardRecipient,
			reward:          reward,
			amount:          amount,
			collateral:      slashed,
			timestamp:       now,
		}))
		result = &SlashResult{RewardPaid: reward, RecipientAmount: big.NewInt(0), Reserved: reserved}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
