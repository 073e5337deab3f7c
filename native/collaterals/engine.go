package collaterals

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/core/events"
	"corebtc/core/types"
)

var (
	errNilState           = errors.New("collaterals: state not configured")
	ErrNotInitialized     = errors.New("collaterals: catalog not initialised")
	ErrAlreadyInitialized = errors.New("collaterals: catalog already initialised")
	ErrNotOwner           = errors.New("collaterals: caller is not the owner")
	ErrAlreadySupported   = errors.New("collaterals: supported collateral")
	ErrZeroAmount         = errors.New("collaterals: amount is zero")
	ErrZeroAddress        = errors.New("collaterals: address is zero")
	ErrUnsupported        = errors.New("collaterals: unsupported collateral")
	ErrInUse              = errors.New("collaterals: collateral in use")
	ErrNativeEntry        = errors.New("collaterals: native collateral cannot be removed")
	errUsageView          = errors.New("collaterals: lockers view not configured")
)

var (
	metaKey  = []byte("collaterals/meta")
	listKey  = []byte("collaterals/list")
	indexPre = []byte("collaterals/index/")
)

func indexKey(token common.Address) []byte {
	return append(append([]byte(nil), indexPre...), token.Bytes()...)
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// Engine maintains the catalog of accepted collateral assets and their
// minimum locked amounts.
type Engine struct {
	state   engineState
	emitter events.Emitter
	usage   UsageView
	pending []*types.Event
}

// NewEngine creates a catalog engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetUsageView wires the locker registry queried before an asset is removed.
func (e *Engine) SetUsageView(view UsageView) { e.usage = view }

func (e *Engine) emit(evt *types.Event) {
	if evt != nil {
		e.pending = append(e.pending, evt)
	}
}

// atomic runs fn against a state snapshot. On error every write made by fn is
// reverted and its events are dropped.
func (e *Engine) atomic(fn func() error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	snap := e.state.Snapshot()
	e.pending = e.pending[:0]
	if err := fn(); err != nil {
		e.state.RevertToSnapshot(snap)
		e.pending = e.pending[:0]
		return err
	}
	for _, evt := range e.pending {
		e.emitter.Emit(evt)
	}
	e.pending = e.pending[:0]
	return nil
}

func (e *Engine) loadMeta() (*catalogMeta, error) {
	meta := new(catalogMeta)
	ok, err := e.state.KVGet(metaKey, meta)
	if err != nil {
		return nil, err
	}
	if !ok || !meta.Initialized {
		return nil, ErrNotInitialized
	}
	return meta, nil
}

func (e *Engine) requireOwner(caller common.Address) (*catalogMeta, error) {
	meta, err := e.loadMeta()
	if err != nil {
		return nil, err
	}
	if caller != meta.Owner {
		return nil, ErrNotOwner
	}
	return meta, nil
}

func (e *Engine) loadList() ([]Entry, error) {
	var list []Entry
	if _, err := e.state.KVGet(listKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (e *Engine) index(token common.Address) (int, bool, error) {
	var slot uint64
	ok, err := e.state.KVGet(indexKey(token), &slot)
	if err != nil {
		return 0, false, err
	}
	if !ok || slot == 0 {
		return 0, false, nil
	}
	return int(slot - 1), true, nil
}

func (e *Engine) putIndex(token common.Address, idx int) error {
	return e.state.KVPut(indexKey(token), uint64(idx)+1)
}

// Init seeds the catalog with the native coin at index 0.
func (e *Engine) Init(owner common.Address, nativeMin *big.Int) error {
	return e.atomic(func() error {
		meta := new(catalogMeta)
		ok, err := e.state.KVGet(metaKey, meta)
		if err != nil {
			return err
		}
		if ok && meta.Initialized {
			return ErrAlreadyInitialized
		}
		if owner == (common.Address{}) {
			return ErrZeroAddress
		}
		if nativeMin == nil || nativeMin.Sign() <= 0 {
			return ErrZeroAmount
		}
		if err := e.state.KVPut(metaKey, &catalogMeta{Owner: owner, Initialized: true}); err != nil {
			return err
		}
		entry := Entry{Token: NativeToken, MinLockedAmount: new(big.Int).Set(nativeMin)}
		if err := e.state.KVPut(listKey, []Entry{entry}); err != nil {
			return err
		}
		if err := e.putIndex(NativeToken, 0); err != nil {
			return err
		}
		e.emit(newAssetAddedEvent(entry, 0))
		return nil
	})
}

// Owner returns the catalog owner.
func (e *Engine) Owner() (common.Address, error) {
	if e == nil || e.state == nil {
		return common.Address{}, errNilState
	}
	meta, err := e.loadMeta()
	if err != nil {
		return common.Address{}, err
	}
	return meta.Owner, nil
}

// TransferOwnership hands catalog administration to a new owner.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	return e.atomic(func() error {
		meta, err := e.requireOwner(caller)
		if err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return ErrZeroAddress
		}
		previous := meta.Owner
		meta.Owner = newOwner
		if err := e.state.KVPut(metaKey, meta); err != nil {
			return err
		}
		e.emit(newOwnershipEvent(previous, newOwner))
		return nil
	})
}

// SetLockers records the locker registry address and the view used to answer
// in-use queries.
func (e *Engine) SetLockers(caller, lockers common.Address, view UsageView) error {
	return e.atomic(func() error {
		meta, err := e.requireOwner(caller)
		if err != nil {
			return err
		}
		if lockers == (common.Address{}) || view == nil {
			return ErrZeroAddress
		}
		previous := meta.Lockers
		meta.Lockers = lockers
		if err := e.state.KVPut(metaKey, meta); err != nil {
			return err
		}
		e.usage = view
		e.emit(newLockersSetEvent(previous, lockers))
		return nil
	})
}

// AddAsset registers a new collateral asset with its minimum locked amount.
func (e *Engine) AddAsset(caller, token common.Address, minLockedAmount *big.Int) error {
	return e.atomic(func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		if token == (common.Address{}) {
			return ErrZeroAddress
		}
		if minLockedAmount == nil || minLockedAmount.Sign() <= 0 {
			return ErrZeroAmount
		}
		if _, ok, err := e.index(token); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%w: %s", ErrAlreadySupported, token.Hex())
		}
		list, err := e.loadList()
		if err != nil {
			return err
		}
		entry := Entry{Token: token, MinLockedAmount: new(big.Int).Set(minLockedAmount)}
		list = append(list, entry)
		if err := e.state.KVPut(listKey, list); err != nil {
			return err
		}
		if err := e.putIndex(token, len(list)-1); err != nil {
			return err
		}
		e.emit(newAssetAddedEvent(entry, len(list)-1))
		return nil
	})
}

// RemoveAsset drops an unused asset, moving the last entry into its slot.
func (e *Engine) RemoveAsset(caller, token common.Address) error {
	return e.atomic(func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		idx, ok, err := e.index(token)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, token.Hex())
		}
		if idx == 0 {
			return ErrNativeEntry
		}
		unused, err := e.isUnused(token)
		if err != nil {
			return err
		}
		if !unused {
			return fmt.Errorf("%w: %s", ErrInUse, token.Hex())
		}
		list, err := e.loadList()
		if err != nil {
			return err
		}
		last := len(list) - 1
		if idx != last {
			list[idx] = list[last]
			if err := e.putIndex(list[idx].Token, idx); err != nil {
				return err
			}
		}
		list = list[:last]
		if err := e.state.KVPut(listKey, list); err != nil {
			return err
		}
		if err := e.state.KVDelete(indexKey(token)); err != nil {
			return err
		}
		e.emit(newAssetRemovedEvent(token))
		return nil
	})
}

// SetMinLockedAmount updates the minimum locked amount of a registered asset.
func (e *Engine) SetMinLockedAmount(caller, token common.Address, minLockedAmount *big.Int) error {
	return e.atomic(func() error {
		if _, err := e.requireOwner(caller); err != nil {
			return err
		}
		if minLockedAmount == nil || minLockedAmount.Sign() <= 0 {
			return ErrZeroAmount
		}
		idx, ok, err := e.index(token)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupported, token.Hex())
		}
		list, err := e.loadList()
		if err != nil {
			return err
		}
		previous := list[idx].MinLockedAmount
		list[idx].MinLockedAmount = new(big.Int).Set(minLockedAmount)
		if err := e.state.KVPut(listKey, list); err != nil {
			return err
		}
		e.emit(newMinLockedAmountEvent(token, previous, minLockedAmount))
		return nil
	})
}

func (e *Engine) isUnused(token common.Address) (bool, error) {
	if e.usage == nil {
		return false, errUsageView
	}
	return e.usage.IsCollateralUnused(token)
}

// IsSupported reports whether the token is in the catalog.
func (e *Engine) IsSupported(token common.Address) bool {
	if e == nil || e.state == nil {
		return false
	}
	_, ok, err := e.index(token)
	return err == nil && ok
}

// IsUnused reports whether no locker or candidate references the token.
func (e *Engine) IsUnused(token common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.isUnused(token)
}

// Index returns the catalog slot of the token.
func (e *Engine) Index(token common.Address) (int, bool, error) {
	if e == nil || e.state == nil {
		return 0, false, errNilState
	}
	return e.index(token)
}

// MinLockedAmount returns the minimum collateral a locker must post in token.
func (e *Engine) MinLockedAmount(token common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	idx, ok, err := e.index(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, token.Hex())
	}
	list, err := e.loadList()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(list[idx].MinLockedAmount), nil
}

// CheckLockedAmount fails with *InsufficientCollateralError when amount is
// below the asset minimum.
func (e *Engine) CheckLockedAmount(token common.Address, amount *big.Int) error {
	min, err := e.MinLockedAmount(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Cmp(min) < 0 {
		have := big.NewInt(0)
		if amount != nil {
			have = new(big.Int).Set(amount)
		}
		return &InsufficientCollateralError{Token: token, Amount: have, Min: min}
	}
	return nil
}

// Entries returns the catalog in slot order.
func (e *Engine) Entries() ([]Entry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	list, err := e.loadList()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(list))
	for i, entry := range list {
		out[i] = entry.Copy()
	}
	return out, nil
}
