package lockers

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// activeLockerByScript resolves the locking script to an active locker.
func (e *Engine) activeLockerByScript(script []byte) (common.Address, *Locker, error) {
	owner, ok, err := e.scriptOwner(script)
	if err != nil {
		return common.Address{}, nil, err
	}
	if !ok {
		return common.Address{}, nil, ErrNotActive
	}
	record, err := e.loadLocker(owner)
	if err != nil {
		return common.Address{}, nil, err
	}
	if !isActive(record, e.now()) {
		return common.Address{}, nil, ErrNotActive
	}
	return owner, record, nil
}

func lockerFee(amount *big.Int, feeBps uint64) *big.Int {
	return mulDiv(amount, bps(feeBps), oneHundredBps)
}

// Mint issues amount pegged tokens backed by the locker owning script. The
// locker fee is minted to the locker and the remainder to recipient, which is
// returned. Minter role only.
func (e *Engine) Mint(caller common.Address, script []byte, recipient common.Address, txRef common.Hash, amount *big.Int) (*big.Int, error) {
	var received *big.Int
	err := e.guarded("mint", func() error {
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		if !e.state.HasRole(RoleMinter, caller.Bytes()) {
			return ErrNotMinter
		}
		if recipient == (common.Address{}) {
			return ErrZeroAddress
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		locker, record, err := e.activeLockerByScript(script)
		if err != nil {
			return err
		}
		capacity, err := e.capacity(params, record)
		if err != nil {
			return err
		}
		if capacity.Cmp(amount) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientCapacity, capacity, amount)
		}
		record.NetMinted = new(big.Int).Add(record.NetMinted, amount)
		if err := e.putLocker(locker, record); err != nil {
			return err
		}
		fee := lockerFee(amount, params.LockerPercentageFee)
		received = new(big.Int).Sub(amount, fee)
		if fee.Sign() > 0 {
			if err := e.pegged.Mint(locker, fee); err != nil {
				return err
			}
		}
		if received.Sign() > 0 {
			if err := e.pegged.Mint(recipient, received); err != nil {
				return err
			}
		}
		e.telemetry.SetNetMinted(locker.Hex(), floatAmount(record.NetMinted))
		e.emit(newMintedEvent(locker, recipient, record.LockingScript, txRef, amount, fee))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return received, nil
}

// Burn pulls amount pegged tokens from the caller, pays the locker fee and
// burns the rest, reducing the locker liability by the burned part, which is
// returned. Burner role only.
func (e *Engine) Burn(caller common.Address, script []byte, amount *big.Int) (*big.Int, error) {
	var burned *big.Int
	err := e.guarded("burn", func() error {
		params, err := e.loadParams()
		if err != nil {
			return err
		}
		if !e.state.HasRole(RoleBurner, caller.Bytes()) {
			return ErrNotBurner
		}
		if err := requirePositive(amount); err != nil {
			return err
		}
		locker, record, err := e.activeLockerByScript(script)
		if err != nil {
			return err
		}
		fee := lockerFee(amount, params.LockerPercentageFee)
		burned = new(big.Int).Sub(amount, fee)
		if burned.Cmp(record.NetMinted) > 0 {
			return fmt.Errorf("%w: have %s, net minted %s", ErrBurnExceedsNetMinted, burned, record.NetMinted)
		}
		record.NetMinted = new(big.Int).Sub(record.NetMinted, burned)
		if err := e.putLocker(locker, record); err != nil {
			return err
		}
		if err := e.pegged.TransferFrom(caller, amount); err != nil {
			return err
		}
		if fee.Sign() > 0 {
			if err := e.pegged.Transfer(locker, fee); err != nil {
				return err
			}
		}
		if burned.Sign() > 0 {
			if err := e.pegged.Burn(burned); err != nil {
				return err
			}
		}
		e.telemetry.SetNetMinted(locker.Hex(), floatAmount(record.NetMinted))
		e.emit(newBurnedEvent(locker, caller, record.LockingScript, amount, fee))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return burned, nil
}
