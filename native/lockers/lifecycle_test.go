package lockers

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"corebtc/crypto"
	"corebtc/native/collaterals"
)

func TestRequestToBecomeLocker(t *testing.T) {
	h := newHarness(t)
	before := h.native(lockerOne)

	require.NoError(t, h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptOne, minLocked()), minLocked()))

	record := h.locker(lockerOne)
	require.True(t, record.IsCandidate)
	require.False(t, record.IsLocker)
	require.False(t, record.IsScriptHash)
	require.Equal(t, collaterals.NativeToken, record.LockedToken)
	require.Equal(t, scriptOne, record.LockingScript)
	require.Equal(t, crypto.P2PKH, record.RescueType())
	requireAmount(t, minLocked(), record.LockedAmount)
	requireAmount(t, new(big.Int).Sub(before, minLocked()), h.native(lockerOne))
	requireAmount(t, minLocked(), h.native(registryAddr))

	candidates, err := h.engine.TotalNumberOfCandidates()
	require.NoError(t, err)
	require.Equal(t, uint64(1), candidates)
	list, err := h.engine.Candidates()
	require.NoError(t, err)
	require.Equal(t, []common.Address{lockerOne}, list)

	evts := h.recorder.ByType(EventTypeRequested)
	require.Len(t, evts, 1)
	require.Equal(t, lockerOne.Hex(), evts[0].Attr("locker"))
	require.Equal(t, "p2pkh", evts[0].Attr("rescue_type"))

	err = h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptTwo, minLocked()), minLocked())
	require.ErrorIs(t, err, ErrIsCandidate)

	require.NoError(t, h.engine.AddLocker(ownerAddr, lockerOne))
	err = h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptTwo, minLocked()), minLocked())
	require.ErrorIs(t, err, ErrIsLocker)
}

func TestRequestToBecomeLockerValidation(t *testing.T) {
	h := newHarness(t)
	below := new(big.Int).Sub(minLocked(), big.NewInt(10))

	err := h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptOne, below), below)
	require.ErrorIs(t, err, ErrLowCollateral)
	var insufficient *collaterals.InsufficientCollateralError
	require.ErrorAs(t, err, &insufficient)
	requireAmount(t, minLocked(), insufficient.Min)

	short := new(big.Int).Sub(minLocked(), big.NewInt(1))
	err = h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptOne, minLocked()), short)
	require.ErrorIs(t, err, ErrValueMismatch)

	req := nativeRequest(scriptOne, minLocked())
	req.CollateralToken = tokenTwoAddr
	err = h.engine.RequestToBecomeLocker(lockerOne, req, nil)
	require.ErrorIs(t, err, ErrUnsupportedToken)

	err = h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(nil, minLocked()), minLocked())
	require.ErrorIs(t, err, ErrEmptyLockingScript)

	req = nativeRequest(scriptOne, minLocked())
	req.RescueScriptType = crypto.P2WSH
	err = h.engine.RequestToBecomeLocker(lockerOne, req, minLocked())
	require.ErrorIs(t, err, ErrInvalidRescue)

	negative := big.NewInt(-1)
	err = h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptOne, negative), negative)
	require.ErrorIs(t, err, ErrNegativeAmount)
	err = h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptOne, minLocked()), negative)
	require.ErrorIs(t, err, ErrNegativeAmount)

	// Nothing leaked out of the failed attempts.
	require.Empty(t, h.recorder.Events())
	requireAmount(t, e18(100), h.native(lockerOne))
	requireAmount(t, big.NewInt(0), h.native(registryAddr))
	owner, err := h.engine.GetLockerTargetAddress(scriptOne)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, owner)
}

func TestLockingScriptUniqueness(t *testing.T) {
	h := newHarness(t)
	h.becomeLocker(lockerOne, scriptOne, minLocked())

	candidatesBefore, err := h.engine.TotalNumberOfCandidates()
	require.NoError(t, err)
	lockersBefore, err := h.engine.TotalNumberOfLockers()
	require.NoError(t, err)

	err = h.engine.RequestToBecomeLocker(lockerTwo, nativeRequest(scriptOne, minLocked()), minLocked())
	require.ErrorIs(t, err, ErrUsedLockingScript)

	candidatesAfter, err := h.engine.TotalNumberOfCandidates()
	require.NoError(t, err)
	lockersAfter, err := h.engine.TotalNumberOfLockers()
	require.NoError(t, err)
	require.Equal(t, candidatesBefore, candidatesAfter)
	require.Equal(t, lockersBefore, lockersAfter)
	require.False(t, h.locker(lockerTwo).Exists())
}

func TestRevokeRequestRoundTrip(t *testing.T) {
	h := newHarness(t)
	before := h.native(lockerOne)
	candidatesBefore, err := h.engine.TotalNumberOfCandidates()
	require.NoError(t, err)

	require.ErrorIs(t, h.engine.RevokeRequest(lockerOne), ErrNoRequest)
	require.NoError(t, h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptOne, minLocked()), minLocked()))
	require.NoError(t, h.engine.RevokeRequest(lockerOne))

	requireAmount(t, before, h.native(lockerOne))
	candidatesAfter, err := h.engine.TotalNumberOfCandidates()
	require.NoError(t, err)
	require.Equal(t, candidatesBefore, candidatesAfter)

	record := h.locker(lockerOne)
	require.False(t, record.Exists())
	require.Equal(t, common.Address{}, record.LockedToken)
	requireAmount(t, big.NewInt(0), record.LockedAmount)

	unused, err := h.engine.IsCollateralUnused(collaterals.NativeToken)
	require.NoError(t, err)
	require.True(t, unused)

	// The script is free again.
	require.NoError(t, h.engine.RequestToBecomeLocker(lockerTwo, nativeRequest(scriptOne, minLocked()), minLocked()))
	require.Len(t, h.recorder.ByType(EventTypeRequestRevoked), 1)
}

func TestAddLocker(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.engine.AddLocker(ownerAddr, lockerOne), ErrNoRequest)
	require.NoError(t, h.engine.RequestToBecomeLocker(lockerOne, nativeRequest(scriptOne, minLocked()), minLocked()))
	require.ErrorIs(t, h.engine.AddLocker(lockerOne, lockerOne), ErrNotOwner)
	require.ErrorIs(t, h.engine.AddLocker(ownerAddr, common.Address{}), ErrZeroAddress)

	isLocker, err := h.engine.IsLocker(scriptOne)
	require.NoError(t, err)
	require.False(t, isLocker)

	require.NoError(t, h.engine.AddLocker(ownerAddr, lockerOne))
	record := h.locker(lockerOne)
	require.True(t, record.IsLocker)
	require.False(t, record.IsCandidate)

	isLocker, err = h.engine.IsLocker(scriptOne)
	require.NoError(t, err)
	require.True(t, isLocker)
	target, err := h.engine.GetLockerTargetAddress(scriptOne)
	require.NoError(t, err)
	require.Equal(t, lockerOne, target)
	script, err := h.engine.GetLockerLockingScript(lockerOne)
	require.NoError(t, err)
	require.Equal(t, scriptOne, script)

	candidates, err := h.engine.TotalNumberOfCandidates()
	require.NoError(t, err)
	require.Zero(t, candidates)
	total, err := h.engine.TotalNumberOfLockers()
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)
	admitted, err := h.engine.Lockers()
	require.NoError(t, err)
	require.Equal(t, []common.Address{lockerOne}, admitted)
	require.Len(t, h.recorder.ByType(EventTypeAdded), 1)
}

func TestInactivationLifecycle(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.engine.RequestInactivation(lockerOne), ErrNotValidLocker)
	require.ErrorIs(t, h.engine.RequestActivation(lockerOne), ErrNotValidLocker)
	h.becomeLocker(lockerOne, scriptOne, minLocked())

	active, err := h.engine.IsLockerActive(lockerOne)
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, h.engine.RequestInactivation(lockerOne))
	scheduled := h.locker(lockerOne).InactivationTimestamp
	require.Equal(t, uint64(h.now+testInactivationDelay), scheduled)

	h.now += 5
	if err := h.engine.RequestInactivation(lockerOne); !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("expected ErrAlreadyRequested, got %v", err)
	}
	require.Equal(t, scheduled, h.locker(lockerOne).InactivationTimestamp)
	require.Len(t, h.recorder.ByType(EventTypeInactivation), 1)

	h.now = int64(scheduled) - 1
	active, err = h.engine.IsLockerActive(lockerOne)
	require.NoError(t, err)
	require.True(t, active)
	require.ErrorIs(t, h.engine.SelfRemoveLocker(lockerOne), ErrStillActive)

	h.now = int64(scheduled)
	active, err = h.engine.IsLockerActive(lockerOne)
	require.NoError(t, err)
	require.False(t, active)

	require.NoError(t, h.engine.RequestActivation(lockerOne))
	require.Zero(t, h.locker(lockerOne).InactivationTimestamp)
	active, err = h.engine.IsLockerActive(lockerOne)
	require.NoError(t, err)
	require.True(t, active)
}

func TestSelfRemoveLocker(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.engine.SelfRemoveLocker(lockerOne), ErrNoLocker)
	before := h.native(lockerOne)
	h.becomeLocker(lockerOne, scriptOne, minLocked())

	require.NoError(t, h.engine.RequestInactivation(lockerOne))
	h.now += testInactivationDelay
	require.NoError(t, h.engine.SelfRemoveLocker(lockerOne))

	requireAmount(t, before, h.native(lockerOne))
	record := h.locker(lockerOne)
	require.False(t, record.Exists())
	requireAmount(t, big.NewInt(0), record.NetMinted)
	total, err := h.engine.TotalNumberOfLockers()
	require.NoError(t, err)
	require.Zero(t, total)
	isLocker, err := h.engine.IsLocker(scriptOne)
	require.NoError(t, err)
	require.False(t, isLocker)

	evts := h.recorder.ByType(EventTypeRemoved)
	require.Len(t, evts, 1)
	require.Equal(t, minLocked().String(), evts[0].Attr("amount"))
}

func TestSelfRemoveRequiresNoLiability(t *testing.T) {
	h := newHarness(t)
	h.becomeLocker(lockerOne, scriptOne, minLocked())
	h.mint(scriptOne, liquidatorAddr, 1000)

	require.NoError(t, h.engine.RequestInactivation(lockerOne))
	h.now += testInactivationDelay
	require.ErrorIs(t, h.engine.SelfRemoveLocker(lockerOne), ErrNetMinted)
	require.True(t, h.locker(lockerOne).IsLocker)
}

func TestCatalogRemovalWaitsForLastLocker(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.catalog.AddAsset(ownerAddr, tokenTwoAddr, e18(1)))
	require.NoError(t, h.state.Approve(tokenTwoAddr, lockerTwo, registryAddr, e18(2)))

	req := nativeRequest(scriptTwo, e18(2))
	req.CollateralToken = tokenTwoAddr
	require.ErrorIs(t, h.engine.RequestToBecomeLocker(lockerTwo, req, big.NewInt(1)), ErrUnexpectedValue)
	require.NoError(t, h.engine.RequestToBecomeLocker(lockerTwo, req, nil))
	requireAmount(t, e18(2), h.balance(tokenTwoAddr, registryAddr))

	require.ErrorIs(t, h.catalog.RemoveAsset(ownerAddr, tokenTwoAddr), collaterals.ErrInUse)
	require.NoError(t, h.engine.AddLocker(ownerAddr, lockerTwo))
	require.ErrorIs(t, h.catalog.RemoveAsset(ownerAddr, tokenTwoAddr), collaterals.ErrInUse)

	require.NoError(t, h.engine.RequestInactivation(lockerTwo))
	h.now += testInactivationDelay
	require.NoError(t, h.engine.SelfRemoveLocker(lockerTwo))
	requireAmount(t, e18(100), h.balance(tokenTwoAddr, lockerTwo))

	require.NoError(t, h.catalog.RemoveAsset(ownerAddr, tokenTwoAddr))
	require.False(t, h.catalog.IsSupported(tokenTwoAddr))
}
