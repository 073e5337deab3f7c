package lockers

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/crypto"
	"corebtc/native/collaterals"
	"corebtc/observability/logging"
)

func isActive(record *Locker, now uint64) bool {
	return record.IsLocker && (record.InactivationTimestamp == 0 || record.InactivationTimestamp > now)
}

// checkIncomingValue enforces that native collateral arrives as exactly the
// attached value and that no value accompanies a token deposit.
func checkIncomingValue(token common.Address, amount, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	if token == collaterals.NativeToken {
		if value.Cmp(amount) != 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrValueMismatch, value, amount)
		}
		return nil
	}
	if value.Sign() != 0 {
		return ErrUnexpectedValue
	}
	return nil
}

// RequestToBecomeLocker registers caller as a candidate, pulling the posted
// collateral into the registry.
func (e *Engine) RequestToBecomeLocker(caller common.Address, req RequestParams, value *big.Int) error {
	return e.guarded("request_to_become_locker", func() error {
		if _, err := e.loadParams(); err != nil {
			return err
		}
		if err := checkAmounts(req.LockedAmount, value); err != nil {
			return err
		}
		record, err := e.loadLocker(caller)
		if err != nil {
			return err
		}
		if record.IsCandidate {
			return ErrIsCandidate
		}
		if record.IsLocker {
			return ErrIsLocker
		}
		if !e.catalog.IsSupported(req.CollateralToken) {
			return fmt.Errorf("%w: %s", ErrUnsupportedToken, req.CollateralToken.Hex())
		}
		if err := e.catalog.CheckLockedAmount(req.CollateralToken, req.LockedAmount); err != nil {
			return fmt.Errorf("%w: %w", ErrLowCollateral, err)
		}
		if err := checkIncomingValue(req.CollateralToken, req.LockedAmount, value); err != nil {
			return err
		}
		if len(req.LockingScript) == 0 {
			return ErrEmptyLockingScript
		}
		if _, used, err := e.scriptOwner(req.LockingScript); err != nil {
			return err
		} else if used {
			return ErrUsedLockingScript
		}
		if err := crypto.ValidateRescueScript(req.RescueScriptType, req.RescueScript); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRescue, err)
		}

		record = newLocker()
		record.LockingScript = append([]byte(nil), req.LockingScript...)
		record.RescueScriptType = uint8(req.RescueScriptType)
		record.RescueScript = append([]byte(nil), req.RescueScript...)
		record.LockedToken = req.CollateralToken
		record.LockedAmount = new(big.Int).Set(req.LockedAmount)
		record.IsCandidate = true
		record.IsScriptHash = req.RescueScriptType == crypto.P2SH
		if err := e.putLocker(caller, record); err != nil {
			return err
		}
		if err := e.bindScript(record.LockingScript, caller); err != nil {
			return err
		}
		if err := candidateList.add(e.state, caller); err != nil {
			return err
		}
		counters, err := e.loadCounters()
		if err != nil {
			return err
		}
		counters.TotalCandidates++
		if err := e.putCounters(counters); err != nil {
			return err
		}
		if err := e.adjustUsage(record.LockedToken, 1); err != nil {
			return err
		}
		if err := e.vault.Pull(record.LockedToken, caller, record.LockedAmount); err != nil {
			return err
		}
		e.logger.Info("locker requested",
			slog.String("locker", caller.Hex()),
			slog.String("token", record.LockedToken.Hex()),
			logging.HashedScript("locking_script", record.LockingScript),
			logging.HashedScript("rescue_script", record.RescueScript))
		e.emit(newRequestedEvent(caller, record))
		return nil
	})
}

// RevokeRequest withdraws a pending candidacy and refunds its collateral.
func (e *Engine) RevokeRequest(caller common.Address) error {
	return e.guarded("revoke_request", func() error {
		record, err := e.loadLocker(caller)
		if err != nil {
			return err
		}
		if !record.IsCandidate {
			return ErrNoRequest
		}
		token, amount := record.LockedToken, new(big.Int).Set(record.LockedAmount)
		if err := e.unbindScript(record.LockingScript); err != nil {
			return err
		}
		if err := candidateList.remove(e.state, caller); err != nil {
			return err
		}
		counters, err := e.loadCounters()
		if err != nil {
			return err
		}
		if counters.TotalCandidates > 0 {
			counters.TotalCandidates--
		}
		if err := e.putCounters(counters); err != nil {
			return err
		}
		if err := e.adjustUsage(token, -1); err != nil {
			return err
		}
		if err := e.putLocker(caller, newLocker()); err != nil {
			return err
		}
		if amount.Sign() > 0 {
			if err := e.vault.Push(token, caller, amount); err != nil {
				return err
			}
		}
		e.emit(newRequestRevokedEvent(caller, token, amount))
		return nil
	})
}

// AddLocker admits a candidate as an active locker. Owner only.
func (e *Engine) AddLocker(caller, candidate common.Address) error {
	return e.atomic("add_locker", func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		if candidate == (common.Address{}) {
			return ErrZeroAddress
		}
		record, err := e.loadLocker(candidate)
		if err != nil {
			return err
		}
		if !record.IsCandidate {
			return ErrNoRequest
		}
		if owner, bound, err := e.scriptOwner(record.LockingScript); err != nil {
			return err
		} else if bound && owner != candidate {
			other, err := e.loadLocker(owner)
			if err != nil {
				return err
			}
			if other.IsLocker {
				return ErrUsedLockingScript
			}
		}
		record.IsCandidate = false
		record.IsLocker = true
		record.InactivationTimestamp = 0
		if err := e.putLocker(candidate, record); err != nil {
			return err
		}
		if err := e.bindScript(record.LockingScript, candidate); err != nil {
			return err
		}
		if err := candidateList.remove(e.state, candidate); err != nil {
			return err
		}
		if err := admittedLockerList.add(e.state, candidate); err != nil {
			return err
		}
		counters, err := e.loadCounters()
		if err != nil {
			return err
		}
		if counters.TotalCandidates > 0 {
			counters.TotalCandidates--
		}
		counters.TotalLockers++
		if err := e.putCounters(counters); err != nil {
			return err
		}
		e.telemetry.SetActive(counters.TotalLockers)
		e.logger.Info("locker admitted", slog.String("locker", candidate.Hex()), slog.String("token", record.LockedToken.Hex()))
		e.emit(newAddedEvent(candidate, record, e.now()))
		return nil
	})
}

// RequestInactivation schedules the locker to become inactive after the
// configured delay.
func (e *Engine) RequestInactivation(caller common.Address) error {
	return e.guarded("request_inactivation", func() error {
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		record, err := e.loadLocker(caller)
		if err != nil {
			return err
		}
		if !record.IsLocker {
			return ErrNotValidLocker
		}
		if record.InactivationTimestamp != 0 {
			return ErrAlreadyRequested
		}
		now := e.now()
		record.InactivationTimestamp = now + params.InactivationDelay
		if err := e.putLocker(caller, record); err != nil {
			return err
		}
		e.emit(newInactivationEvent(caller, now, record.InactivationTimestamp))
		return nil
	})
}

// RequestActivation cancels a pending or elapsed inactivation.
func (e *Engine) RequestActivation(caller common.Address) error {
	return e.guarded("request_activation", func() error {
		record, err := e.loadLocker(caller)
		if err != nil {
			return err
		}
		if !record.IsLocker {
			return ErrNotValidLocker
		}
		record.InactivationTimestamp = 0
		if err := e.putLocker(caller, record); err != nil {
			return err
		}
		e.emit(newActivatedEvent(caller, e.now()))
		return nil
	})
}

// SelfRemoveLocker removes an inactive locker without liability and returns
// its collateral, including any reserve left over from slashed collateral
// sales.
func (e *Engine) SelfRemoveLocker(caller common.Address) error {
	return e.guarded("self_remove_locker", func() error {
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
		if record.NetMinted.Sign() != 0 {
			return fmt.Errorf("%w: %s", ErrNetMinted, record.NetMinted)
		}
		if record.SlashingCoreBTCAmount.Sign() != 0 {
			return fmt.Errorf("%w: %s", ErrSlashingPending, record.SlashingCoreBTCAmount)
		}
		token := record.LockedToken
		payout := new(big.Int).Add(record.LockedAmount, record.ReservedTokenForSlash)
		if err := e.unbindScript(record.LockingScript); err != nil {
			return err
		}
		if err := admittedLockerList.remove(e.state, caller); err != nil {
			return err
		}
		counters, err := e.loadCounters()
		if err != nil {
			return err
		}
		if counters.TotalLockers > 0 {
			counters.TotalLockers--
		}
		if err := e.putCounters(counters); err != nil {
			return err
		}
		if err := e.adjustUsage(token, -1); err != nil {
			return err
		}
		if err := e.putLocker(caller, newLocker()); err != nil {
			return err
		}
		if payout.Sign() > 0 {
			if err := e.vault.Push(token, caller, payout); err != nil {
				return err
			}
		}
		e.telemetry.SetActive(counters.TotalLockers)
		e.telemetry.SetNetMinted(caller.Hex(), 0)
		e.logger.Info("locker removed", slog.String("locker", caller.Hex()), slog.String("payout", payout.String()))
		e.emit(newRemovedEvent(caller, token, payout))
		return nil
	})
}
