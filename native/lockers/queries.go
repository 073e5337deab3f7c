package lockers

import (
	"github.com/ethereum/go-ethereum/common"
)

func (e *Engine) readable() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// GetLocker returns a copy of the record stored for addr. Unknown addresses
// yield a zeroed record.
func (e *Engine) GetLocker(addr common.Address) (*Locker, error) {
	if err := e.readable(); err != nil {
		return nil, err
	}
	record, err := e.loadLocker(addr)
	if err != nil {
		return nil, err
	}
	return record.Copy(), nil
}

// IsLocker reports whether the locking script belongs to an admitted locker.
func (e *Engine) IsLocker(script []byte) (bool, error) {
	target, err := e.GetLockerTargetAddress(script)
	if err != nil {
		return false, err
	}
	return target != (common.Address{}), nil
}

// GetLockerTargetAddress resolves a locking script to the admitted locker
// that owns it, or the zero address.
func (e *Engine) GetLockerTargetAddress(script []byte) (common.Address, error) {
	if err := e.readable(); err != nil {
		return common.Address{}, err
	}
	if len(script) == 0 {
		return common.Address{}, nil
	}
	owner, ok, err := e.scriptOwner(script)
	if err != nil || !ok {
		return common.Address{}, err
	}
	record, err := e.loadLocker(owner)
	if err != nil {
		return common.Address{}, err
	}
	if !record.IsLocker {
		return common.Address{}, nil
	}
	return owner, nil
}

// GetLockerLockingScript returns the locking script registered by addr.
func (e *Engine) GetLockerLockingScript(addr common.Address) ([]byte, error) {
	record, err := e.GetLocker(addr)
	if err != nil {
		return nil, err
	}
	return record.LockingScript, nil
}

// IsLockerActive reports whether addr is a locker whose inactivation time has
// not been reached.
func (e *Engine) IsLockerActive(addr common.Address) (bool, error) {
	if err := e.readable(); err != nil {
		return false, err
	}
	record, err := e.loadLocker(addr)
	if err != nil {
		return false, err
	}
	return isActive(record, e.now()), nil
}

// TotalNumberOfCandidates returns the number of pending candidacies.
func (e *Engine) TotalNumberOfCandidates() (uint64, error) {
	if err := e.readable(); err != nil {
		return 0, err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return 0, err
	}
	return counters.TotalCandidates, nil
}

// TotalNumberOfLockers returns the number of admitted lockers.
func (e *Engine) TotalNumberOfLockers() (uint64, error) {
	if err := e.readable(); err != nil {
		return 0, err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return 0, err
	}
	return counters.TotalLockers, nil
}

// Candidates lists the pending candidates.
func (e *Engine) Candidates() ([]common.Address, error) {
	if err := e.readable(); err != nil {
		return nil, err
	}
	return candidateList.members(e.state)
}

// Lockers lists the admitted lockers, active or not.
func (e *Engine) Lockers() ([]common.Address, error) {
	if err := e.readable(); err != nil {
		return nil, err
	}
	return admittedLockerList.members(e.state)
}

// IsCollateralUnused reports whether no candidate or locker has posted token.
// The collateral catalog consults it before removing an asset.
func (e *Engine) IsCollateralUnused(token common.Address) (bool, error) {
	if err := e.readable(); err != nil {
		return false, err
	}
	count, err := e.usage(token)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
