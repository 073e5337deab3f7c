package lockers

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/core/events"
	"corebtc/core/types"
	nativecommon "corebtc/native/common"
	"corebtc/native/pricing"
	"corebtc/observability/metrics"
)

const moduleName = "lockers"

const (
	RoleMinter = "lockers/minter"
	RoleBurner = "lockers/burner"
)

// Catalog is the subset of the collateral catalog consulted by the registry.
type Catalog interface {
	IsSupported(token common.Address) bool
	MinLockedAmount(token common.Address) (*big.Int, error)
	CheckLockedAmount(token common.Address, amount *big.Int) error
}

// PeggedToken moves pegged tokens on behalf of the registry account.
type PeggedToken interface {
	Decimals() (uint8, error)
	BalanceOf(owner common.Address) (*big.Int, error)
	Mint(to common.Address, amount *big.Int) error
	// Burn destroys amount held by the registry account.
	Burn(amount *big.Int) error
	Transfer(to common.Address, amount *big.Int) error
	// TransferFrom pulls amount from owner into the registry account using the
	// allowance owner granted the registry.
	TransferFrom(owner common.Address, amount *big.Int) error
}

// Vault custodies locked collateral. Pull moves collateral from an account into
// the registry: for the native coin it collects the attached value, for tokens
// it spends the allowance granted to the registry. Push pays out of the
// registry.
type Vault interface {
	Decimals(token common.Address) (uint8, error)
	Pull(token, from common.Address, amount *big.Int) error
	Push(token, to common.Address, amount *big.Int) error
}

// Engine implements the locker registry together with its accounting,
// slashing and mint/burn gateway.
type Engine struct {
	state     engineState
	catalog   Catalog
	prices    *pricing.Adapter
	pegged    PeggedToken
	vault     Vault
	emitter   events.Emitter
	logger    *slog.Logger
	telemetry *metrics.LockersMetrics
	nowFn     func() int64
	pending   []*types.Event
	entered   bool
}

// NewEngine creates a registry engine with a no-op emitter and wall-clock time.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		telemetry: metrics.Lockers(),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCatalog wires the collateral catalog.
func (e *Engine) SetCatalog(catalog Catalog) { e.catalog = catalog }

// SetPricing wires the price conversion adapter.
func (e *Engine) SetPricing(adapter *pricing.Adapter) { e.prices = adapter }

// SetPeggedToken wires the pegged token ledger.
func (e *Engine) SetPeggedToken(token PeggedToken) { e.pegged = token }

// SetVault wires the collateral custody.
func (e *Engine) SetVault(vault Vault) { e.vault = vault }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures the logger, falling back to slog.Default when nil.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the clock used for inactivation timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(evt *types.Event) {
	if evt != nil {
		e.pending = append(e.pending, evt)
	}
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.catalog == nil || e.prices == nil || e.pegged == nil || e.vault == nil {
		return errNilCollaborator
	}
	return nil
}

// atomic runs fn as a single unit: every buffered state write made by fn is
// reverted when it fails, and its events are emitted only on success. A call
// arriving while another operation is still running is rejected.
func (e *Engine) atomic(op string, fn func() error) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.entered {
		return ErrReentrant
	}
	e.entered = true
	defer func() { e.entered = false }()

	snap := e.state.Snapshot()
	e.pending = e.pending[:0]
	err := fn()
	e.telemetry.ObserveOperation(op, err)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		e.pending = e.pending[:0]
		e.logger.Debug("lockers operation rejected", slog.String("op", op), slog.Any("error", err))
		return err
	}
	for _, evt := range e.pending {
		e.emitter.Emit(evt)
	}
	e.pending = e.pending[:0]
	return nil
}

// guarded is atomic for user entry points that halt while the module is paused.
func (e *Engine) guarded(op string, fn func() error) error {
	return e.atomic(op, func() error {
		if err := nativecommon.Guard(e.state, moduleName); err != nil {
			return ErrPaused
		}
		return fn()
	})
}

func (e *Engine) requireOwner(caller common.Address) (*Params, error) {
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if caller != params.Owner {
		return nil, ErrNotOwner
	}
	return params, nil
}

// Init stores the genesis parameters.
func (e *Engine) Init(params Params) error {
	return e.atomic("init", func() error {
		if _, err := e.loadParams(); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrNotInitialized) {
			return err
		}
		if err := params.Validate(); err != nil {
			return err
		}
		if params.PeggedToken != e.prices.PeggedToken() {
			return fmt.Errorf("lockers: pegged token %s does not match pricing adapter %s", params.PeggedToken.Hex(), e.prices.PeggedToken().Hex())
		}
		if err := e.putParams(&params); err != nil {
			return err
		}
		return e.putCounters(&Counters{})
	})
}

// Params returns the current parameter set.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadParams()
}
