package collaterals

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"corebtc/core/events"
	"corebtc/core/state"
	"corebtc/storage"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	stranger  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	lockers   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	tokenTwo  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	tokenNew  = common.HexToAddress("0x0000000000000000000000000000000000000003")
	tokenFour = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

type usageSet map[common.Address]bool

func (u usageSet) IsCollateralUnused(token common.Address) (bool, error) {
	return !u[token], nil
}

func newTestEngine(t *testing.T) (*Engine, *events.Recorder, usageSet) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	engine := NewEngine()
	engine.SetState(state.NewManager(db))
	recorder := &events.Recorder{}
	engine.SetEmitter(recorder)
	require.NoError(t, engine.Init(owner, big.NewInt(1000)))
	usage := usageSet{}
	require.NoError(t, engine.SetLockers(owner, lockers, usage))
	recorder.Reset()
	return engine, recorder, usage
}

func tokens(entries []Entry) []common.Address {
	out := make([]common.Address, len(entries))
	for i, entry := range entries {
		out[i] = entry.Token
	}
	return out
}

func TestInitSeedsNativeEntry(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	entries, err := engine.Entries()
	require.NoError(t, err)
	require.Equal(t, []common.Address{NativeToken}, tokens(entries))
	require.True(t, engine.IsSupported(NativeToken))
	require.ErrorIs(t, engine.Init(owner, big.NewInt(1)), ErrAlreadyInitialized)
}

func TestAddAssetValidation(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)

	require.ErrorIs(t, engine.AddAsset(stranger, tokenTwo, big.NewInt(5)), ErrNotOwner)
	require.ErrorIs(t, engine.AddAsset(owner, common.Address{}, big.NewInt(5)), ErrZeroAddress)
	require.ErrorIs(t, engine.AddAsset(owner, tokenTwo, big.NewInt(0)), ErrZeroAmount)
	require.NoError(t, engine.AddAsset(owner, tokenTwo, big.NewInt(5)))
	require.ErrorIs(t, engine.AddAsset(owner, tokenTwo, big.NewInt(5)), ErrAlreadySupported)
	require.ErrorIs(t, engine.AddAsset(owner, NativeToken, big.NewInt(5)), ErrAlreadySupported)

	added := recorder.ByType(EventTypeAssetAdded)
	require.Len(t, added, 1)
	require.Equal(t, tokenTwo.Hex(), added[0].Attr("token"))
	require.Equal(t, "5", added[0].Attr("min_locked_amount"))
	require.Equal(t, "1", added[0].Attr("index"))
}

func TestRemoveAssetSwapsLastEntry(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	for _, token := range []common.Address{tokenTwo, tokenNew, tokenFour} {
		require.NoError(t, engine.AddAsset(owner, token, big.NewInt(10)))
	}
	require.NoError(t, engine.RemoveAsset(owner, tokenTwo))

	entries, err := engine.Entries()
	require.NoError(t, err)
	require.Equal(t, []common.Address{NativeToken, tokenFour, tokenNew}, tokens(entries))

	idx, ok, err := engine.Index(tokenFour)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, idx)
	_, ok, err = engine.Index(tokenTwo)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, engine.IsSupported(tokenTwo))
	require.Len(t, recorder.ByType(EventTypeAssetRemoved), 1)

	// Removing the last slot needs no swap.
	require.NoError(t, engine.RemoveAsset(owner, tokenNew))
	entries, err = engine.Entries()
	require.NoError(t, err)
	require.Equal(t, []common.Address{NativeToken, tokenFour}, tokens(entries))
}

func TestRemoveAssetGuards(t *testing.T) {
	engine, recorder, usage := newTestEngine(t)
	require.NoError(t, engine.AddAsset(owner, tokenTwo, big.NewInt(10)))
	recorder.Reset()

	require.ErrorIs(t, engine.RemoveAsset(stranger, tokenTwo), ErrNotOwner)
	require.ErrorIs(t, engine.RemoveAsset(owner, tokenNew), ErrUnsupported)
	require.ErrorIs(t, engine.RemoveAsset(owner, NativeToken), ErrNativeEntry)

	usage[tokenTwo] = true
	err := engine.RemoveAsset(owner, tokenTwo)
	if !errors.Is(err, ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	require.True(t, engine.IsSupported(tokenTwo))
	require.Empty(t, recorder.Events())

	delete(usage, tokenTwo)
	require.NoError(t, engine.RemoveAsset(owner, tokenTwo))
}

func TestRemoveAssetWithoutUsageView(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	engine := NewEngine()
	engine.SetState(state.NewManager(db))
	require.NoError(t, engine.Init(owner, big.NewInt(1)))
	require.NoError(t, engine.AddAsset(owner, tokenTwo, big.NewInt(1)))
	require.Error(t, engine.RemoveAsset(owner, tokenTwo))
	require.True(t, engine.IsSupported(tokenTwo))
}

func TestSetMinLockedAmount(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)

	require.ErrorIs(t, engine.SetMinLockedAmount(owner, tokenTwo, big.NewInt(1)), ErrUnsupported)
	require.ErrorIs(t, engine.SetMinLockedAmount(owner, NativeToken, big.NewInt(0)), ErrZeroAmount)
	require.NoError(t, engine.SetMinLockedAmount(owner, NativeToken, big.NewInt(2500)))

	min, err := engine.MinLockedAmount(NativeToken)
	require.NoError(t, err)
	require.Equal(t, int64(2500), min.Int64())

	evts := recorder.ByType(EventTypeMinLockedAmount)
	require.Len(t, evts, 1)
	require.Equal(t, "1000", evts[0].Attr("previous"))
	require.Equal(t, "2500", evts[0].Attr("updated"))
}

func TestCheckLockedAmount(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	require.NoError(t, engine.CheckLockedAmount(NativeToken, big.NewInt(1000)))
	err := engine.CheckLockedAmount(NativeToken, big.NewInt(999))
	var insufficient *InsufficientCollateralError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(999), insufficient.Amount.Int64())
	require.Equal(t, int64(1000), insufficient.Min.Int64())
	require.ErrorIs(t, engine.CheckLockedAmount(tokenTwo, big.NewInt(1)), ErrUnsupported)
}

func TestOwnershipTransfer(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.ErrorIs(t, engine.TransferOwnership(stranger, stranger), ErrNotOwner)
	require.ErrorIs(t, engine.TransferOwnership(owner, common.Address{}), ErrZeroAddress)
	require.NoError(t, engine.TransferOwnership(owner, stranger))
	current, err := engine.Owner()
	require.NoError(t, err)
	require.Equal(t, stranger, current)
	require.ErrorIs(t, engine.AddAsset(owner, tokenTwo, big.NewInt(1)), ErrNotOwner)
}
