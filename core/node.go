package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"

	"corebtc/config"
	"corebtc/core/events"
	"corebtc/core/state"
	"corebtc/crypto"
	"corebtc/native/collaterals"
	"corebtc/native/lockers"
	"corebtc/native/pricing"
	"corebtc/storage"
)

// Clock is the time source shared by the registry and the price oracle. A
// pinned clock reports the pinned Unix time instead of the wall clock.
type Clock struct {
	pinned atomic.Int64
}

// Now returns the current Unix time.
func (c *Clock) Now() int64 {
	if ts := c.pinned.Load(); ts != 0 {
		return ts
	}
	return time.Now().Unix()
}

// Pin fixes the clock at ts. Zero returns to the wall clock.
func (c *Clock) Pin(ts int64) { c.pinned.Store(ts) }

// Options tunes NewNode.
type Options struct {
	Emitter events.Emitter
	Logger  *slog.Logger
}

// Node is the central controller, wiring the state, the collateral catalog,
// the locker registry and the price oracle together. Every call into the
// engines goes through Apply or View, which serialise access to state.
type Node struct {
	db       storage.Database
	state    *state.Manager
	catalog  *collaterals.Engine
	lockers  *lockers.Engine
	oracle   *pricing.FeedOracle
	clock    *Clock
	network  *chaincfg.Params
	registry common.Address
	pegged   common.Address
	logger   *slog.Logger
	stateMu  sync.Mutex
}

// NewNode wires the engines over db. Genesis is not applied; call
// EnsureGenesis once the node is constructed.
func NewNode(db storage.Database, cfg *config.Config, opts Options) (*Node, error) {
	if db == nil {
		return nil, errors.New("node: database required")
	}
	if cfg == nil {
		return nil, errors.New("node: config required")
	}
	network, err := crypto.NetworkParams(cfg.BitcoinNetwork)
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Lockers.RegistryAccount()
	if err != nil {
		return nil, err
	}
	pegged, err := crypto.ParseAddress(cfg.Lockers.PeggedToken)
	if err != nil {
		return nil, fmt.Errorf("invalid lockers.PeggedToken: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	n := &Node{
		db:       db,
		state:    state.NewManager(db),
		clock:    &Clock{},
		network:  network,
		registry: registry,
		pegged:   pegged,
		logger:   logger,
	}

	n.oracle = pricing.NewFeedOracle(time.Duration(cfg.Oracle.AcceptableDelaySecs) * time.Second)
	n.oracle.SetNowFunc(n.clock.Now)

	n.catalog = collaterals.NewEngine()
	n.catalog.SetState(n.state)
	n.catalog.SetEmitter(emitter)

	n.lockers = lockers.NewEngine()
	n.lockers.SetState(n.state)
	n.lockers.SetCatalog(n.catalog)
	n.lockers.SetPricing(pricing.NewAdapter(n.oracle, n.state, pegged, cfg.Lockers.PeggedDecimals))
	n.lockers.SetPeggedToken(lockers.NewLedgerPeggedToken(n.state, pegged, registry))
	n.lockers.SetVault(lockers.NewLedgerVault(n.state, registry, collaterals.NativeToken))
	n.lockers.SetEmitter(emitter)
	n.lockers.SetLogger(logger)
	n.lockers.SetNowFunc(n.clock.Now)
	n.catalog.SetUsageView(n.lockers)
	return n, nil
}

// EnsureGenesis registers the configured tokens, seeds the collateral catalog
// and initialises the registry on first start, then loads the configured
// price feeds. It reports whether genesis was applied.
func (n *Node) EnsureGenesis(cfg *config.Config) (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	applied := false
	if _, err := n.lockers.Params(); errors.Is(err, lockers.ErrNotInitialized) {
		if err := n.applyGenesis(cfg); err != nil {
			n.state.Discard()
			return false, err
		}
		applied = true
	} else if err != nil {
		return false, err
	}
	if err := n.state.Commit(); err != nil {
		return false, err
	}
	if err := n.LoadFeeds(cfg.Oracle.Feeds); err != nil {
		return applied, err
	}
	return applied, nil
}

// LoadFeeds records the configured prices as observed now.
func (n *Node) LoadFeeds(feeds []config.Feed) error {
	for _, feed := range feeds {
		token, price, err := feed.Parse()
		if err != nil {
			return err
		}
		if err := n.oracle.SetFeed(token, price, feed.Decimals, n.clock.Now()); err != nil {
			return fmt.Errorf("feed %s: %w", feed.Token, err)
		}
	}
	return nil
}

func (n *Node) applyGenesis(cfg *config.Config) error {
	params, err := cfg.Lockers.Params()
	if err != nil {
		return err
	}
	if len(cfg.Collaterals) == 0 {
		return errors.New("genesis: no collateral configured")
	}
	if err := n.state.RegisterToken(n.pegged, cfg.Lockers.PeggedSymbol, cfg.Lockers.PeggedSymbol, cfg.Lockers.PeggedDecimals); err != nil {
		return fmt.Errorf("genesis: pegged token: %w", err)
	}
	if err := n.state.SetTokenMintAuthority(n.pegged, n.registry, true); err != nil {
		return fmt.Errorf("genesis: mint authority: %w", err)
	}

	var nativeMin *big.Int
	extra := make([]config.Collateral, 0, len(cfg.Collaterals))
	for _, entry := range cfg.Collaterals {
		token, minLocked, err := entry.Parse()
		if err != nil {
			return err
		}
		if err := n.state.RegisterToken(token, entry.Symbol, entry.Symbol, entry.Decimals); err != nil {
			return fmt.Errorf("genesis: collateral %s: %w", entry.Symbol, err)
		}
		if token == collaterals.NativeToken {
			nativeMin = minLocked
			continue
		}
		extra = append(extra, entry)
	}
	if nativeMin == nil {
		return errors.New("genesis: native collateral missing")
	}
	if err := n.catalog.Init(params.Owner, nativeMin); err != nil {
		return fmt.Errorf("genesis: catalog: %w", err)
	}
	for _, entry := range extra {
		token, minLocked, _ := entry.Parse()
		if err := n.catalog.AddAsset(params.Owner, token, minLocked); err != nil {
			return fmt.Errorf("genesis: catalog %s: %w", entry.Symbol, err)
		}
	}
	if err := n.lockers.Init(params); err != nil {
		return fmt.Errorf("genesis: lockers: %w", err)
	}
	if err := n.catalog.SetLockers(params.Owner, n.registry, n.lockers); err != nil {
		return fmt.Errorf("genesis: bind catalog: %w", err)
	}
	minters, burners, err := cfg.Lockers.RoleAccounts()
	if err != nil {
		return err
	}
	for _, account := range minters {
		if err := n.lockers.AddMinter(params.Owner, account); err != nil {
			return fmt.Errorf("genesis: minter %s: %w", account.Hex(), err)
		}
	}
	for _, account := range burners {
		if err := n.lockers.AddBurner(params.Owner, account); err != nil {
			return fmt.Errorf("genesis: burner %s: %w", account.Hex(), err)
		}
	}
	n.logger.Info("genesis applied",
		slog.String("owner", params.Owner.Hex()),
		slog.Int("collaterals", len(cfg.Collaterals)),
		slog.Int("minters", len(minters)),
		slog.Int("burners", len(burners)))
	return nil
}

// Apply runs fn with exclusive access to the engines and commits the buffered
// writes when fn succeeds. Writes of a failed fn are discarded.
func (n *Node) Apply(fn func() error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	if err := fn(); err != nil {
		n.state.Discard()
		return err
	}
	return n.state.Commit()
}

// View runs fn with exclusive access to the engines without committing.
func (n *Node) View(fn func() error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return fn()
}

// Locker exposes the node mutex for callers that batch several reads.
func (n *Node) Locker() sync.Locker { return &n.stateMu }

func (n *Node) State() *state.Manager { return n.state }
func (n *Node) Catalog() *collaterals.Engine { return n.catalog }
func (n *Node) Lockers() *lockers.Engine { return n.lockers }
func (n *Node) Oracle() *pricing.FeedOracle { return n.oracle }
func (n *Node) Clock() *Clock { return n.clock }
func (n *Node) Network() *chaincfg.Params { return n.network }
func (n *Node) RegistryAccount() common.Address { return n.registry }
func (n *Node) PeggedToken() common.Address { return n.pegged }

// Close releases the database.
func (n *Node) Close() {
	n.db.Close()
}
