package lockers

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"corebtc/core/events"
	"corebtc/core/state"
	"corebtc/crypto"
	"corebtc/native/collaterals"
	"corebtc/native/pricing"
	"corebtc/storage"
)

var (
	ownerAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	burnRouterAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	minterAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	registryAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	lockerOne      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	lockerTwo      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	liquidatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	reporterAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	compensateAddr = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	peggedAddr     = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	tokenTwoAddr   = common.HexToAddress("0x0000000000000000000000000000000000000002")

	scriptOne   = []byte{0x76, 0xa9, 0x14, 0x01, 0x88, 0xac}
	scriptTwo   = []byte{0x76, 0xa9, 0x14, 0x02, 0x88, 0xac}
	rescueP2PKH = common.FromHex("12ab8dc588ca9d5787dde7eb29569da63c3a238c")
)

const (
	testCollateralRatio   = 20000
	testLiquidationRatio  = 15000
	testLockerFee         = 20
	testDiscountRatio     = 9500
	testInactivationDelay = 10000
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func minLocked() *big.Int { return e18(5) }

type fixedOracle struct {
	out *big.Int
	err error
}

func (o *fixedOracle) EquivalentOutputAmount(*big.Int, uint8, uint8, common.Address, common.Address) (*big.Int, error) {
	if o.err != nil {
		return nil, o.err
	}
	return new(big.Int).Set(o.out), nil
}

func (o *fixedOracle) returns(v int64) { o.out = big.NewInt(v) }

type harness struct {
	t        *testing.T
	state    *state.Manager
	catalog  *collaterals.Engine
	engine   *Engine
	oracle   *fixedOracle
	recorder *events.Recorder
	now      int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	st := state.NewManager(db)
	h := &harness{t: t, state: st, oracle: &fixedOracle{out: big.NewInt(10000)}, recorder: &events.Recorder{}, now: 1_000}

	require.NoError(t, st.RegisterToken(collaterals.NativeToken, "CORE", "Core", 18))
	require.NoError(t, st.RegisterToken(peggedAddr, "CBTC", "coreBTC", 8))
	require.NoError(t, st.RegisterToken(tokenTwoAddr, "TWO", "Token Two", 18))
	require.NoError(t, st.SetTokenMintAuthority(peggedAddr, registryAddr, true))
	for _, account := range []common.Address{lockerOne, lockerTwo, liquidatorAddr} {
		require.NoError(t, st.Credit(collaterals.NativeToken, account, e18(100)))
		require.NoError(t, st.Credit(tokenTwoAddr, account, e18(100)))
	}

	h.catalog = collaterals.NewEngine()
	h.catalog.SetState(st)
	require.NoError(t, h.catalog.Init(ownerAddr, minLocked()))

	h.engine = NewEngine()
	h.engine.SetState(st)
	h.engine.SetCatalog(h.catalog)
	h.engine.SetPricing(pricing.NewAdapter(h.oracle, st, peggedAddr, 8))
	h.engine.SetPeggedToken(NewLedgerPeggedToken(st, peggedAddr, registryAddr))
	h.engine.SetVault(NewLedgerVault(st, registryAddr, collaterals.NativeToken))
	h.engine.SetEmitter(h.recorder)
	h.engine.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.engine.SetNowFunc(func() int64 { return h.now })
	require.NoError(t, h.engine.Init(Params{
		Owner:                  ownerAddr,
		BurnRouter:             burnRouterAddr,
		PeggedToken:            peggedAddr,
		CollateralRatio:        testCollateralRatio,
		LiquidationRatio:       testLiquidationRatio,
		LockerPercentageFee:    testLockerFee,
		PriceWithDiscountRatio: testDiscountRatio,
		InactivationDelay:      testInactivationDelay,
	}))
	require.NoError(t, h.catalog.SetLockers(ownerAddr, registryAddr, h.engine))
	require.NoError(t, h.engine.AddMinter(ownerAddr, minterAddr))
	h.recorder.Reset()
	return h
}

func nativeRequest(script []byte, amount *big.Int) RequestParams {
	return RequestParams{
		LockingScript:    script,
		LockedAmount:     amount,
		RescueScriptType: crypto.P2PKH,
		RescueScript:     rescueP2PKH,
		CollateralToken:  collaterals.NativeToken,
	}
}

func (h *harness) becomeLocker(addr common.Address, script []byte, amount *big.Int) {
	h.t.Helper()
	require.NoError(h.t, h.engine.RequestToBecomeLocker(addr, nativeRequest(script, amount), amount))
	require.NoError(h.t, h.engine.AddLocker(ownerAddr, addr))
}

func (h *harness) locker(addr common.Address) *Locker {
	h.t.Helper()
	record, err := h.engine.GetLocker(addr)
	require.NoError(h.t, err)
	return record
}

func (h *harness) balance(token, owner common.Address) *big.Int {
	h.t.Helper()
	bal, err := h.state.Balance(token, owner)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) native(owner common.Address) *big.Int {
	return h.balance(collaterals.NativeToken, owner)
}

func (h *harness) pegged(owner common.Address) *big.Int {
	return h.balance(peggedAddr, owner)
}

func (h *harness) approvePegged(owner common.Address, amount int64) {
	h.t.Helper()
	require.NoError(h.t, h.state.Approve(peggedAddr, owner, registryAddr, big.NewInt(amount)))
}

func (h *harness) mint(script []byte, recipient common.Address, amount int64) {
	h.t.Helper()
	_, err := h.engine.Mint(minterAddr, script, recipient, common.Hash{0x01}, big.NewInt(amount))
	require.NoError(h.t, err)
}

func requireAmount(t *testing.T, want, got *big.Int) {
	t.Helper()
	if want.Cmp(got) != 0 {
		t.Fatalf("amount mismatch: want %s, got %s", want, got)
	}
}
