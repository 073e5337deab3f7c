package lockers

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAddCollateral(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.engine.AddCollateral(liquidatorAddr, lockerOne, e18(1), e18(1)), ErrNoLocker)
	h.becomeLocker(lockerOne, scriptOne, minLocked())

	require.ErrorIs(t, h.engine.AddCollateral(liquidatorAddr, common.Address{}, e18(1), e18(1)), ErrZeroAddress)
	require.ErrorIs(t, h.engine.AddCollateral(liquidatorAddr, lockerOne, big.NewInt(0), nil), ErrZeroAmount)
	require.ErrorIs(t, h.engine.AddCollateral(liquidatorAddr, lockerOne, e18(1), e18(2)), ErrValueMismatch)
	require.ErrorIs(t, h.engine.AddCollateral(liquidatorAddr, lockerOne, big.NewInt(-1), big.NewInt(-1)), ErrNegativeAmount)
	require.ErrorIs(t, h.engine.AddCollateral(liquidatorAddr, lockerOne, e18(1), big.NewInt(-1)), ErrNegativeAmount)
	requireAmount(t, minLocked(), h.locker(lockerOne).LockedAmount)

	require.NoError(t, h.engine.AddCollateral(liquidatorAddr, lockerOne, e18(1), e18(1)))
	requireAmount(t, e18(6), h.locker(lockerOne).LockedAmount)
	requireAmount(t, e18(99), h.native(liquidatorAddr))
	requireAmount(t, e18(6), h.native(registryAddr))

	evts := h.recorder.ByType(EventTypeCollateralAdded)
	require.Len(t, evts, 1)
	require.Equal(t, liquidatorAddr.Hex(), evts[0].Attr("added_by"))
	require.Equal(t, e18(6).String(), evts[0].Attr("total"))
}

func TestRemoveCollateral(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.engine.RemoveCollateral(lockerOne, e18(1)), ErrNoLocker)
	h.becomeLocker(lockerOne, scriptOne, e18(10))

	require.ErrorIs(t, h.engine.RemoveCollateral(lockerOne, e18(1)), ErrStillActive)
	require.NoError(t, h.engine.RequestInactivation(lockerOne))
	h.now += testInactivationDelay

	require.ErrorIs(t, h.engine.RemoveCollateral(lockerOne, big.NewInt(0)), ErrZeroAmount)
	require.ErrorIs(t, h.engine.RemoveCollateral(lockerOne, big.NewInt(-1)), ErrNegativeAmount)
	requireAmount(t, e18(10), h.locker(lockerOne).LockedAmount)

	// value 10000 at CR 200% leaves half the collateral unused.
	maxRemovable, err := h.engine.MaxRemovableCollateral(lockerOne)
	require.NoError(t, err)
	requireAmount(t, e18(5), maxRemovable)

	over := new(big.Int).Add(e18(5), big.NewInt(1))
	require.ErrorIs(t, h.engine.RemoveCollateral(lockerOne, over), ErrMaxRemovable)

	before := h.native(lockerOne)
	require.NoError(t, h.engine.RemoveCollateral(lockerOne, e18(5)))
	requireAmount(t, e18(5), h.locker(lockerOne).LockedAmount)
	requireAmount(t, new(big.Int).Add(before, e18(5)), h.native(lockerOne))
	require.Len(t, h.recorder.ByType(EventTypeCollateralRemoved), 1)
}

func TestRemoveCollateralKeepsMinimum(t *testing.T) {
	h := newHarness(t)
	h.becomeLocker(lockerOne, scriptOne, minLocked())
	require.NoError(t, h.engine.RequestInactivation(lockerOne))
	h.now += testInactivationDelay

	maxRemovable, err := h.engine.MaxRemovableCollateral(lockerOne)
	require.NoError(t, err)
	half := new(big.Int).Div(minLocked(), big.NewInt(2))
	requireAmount(t, half, maxRemovable)

	require.ErrorIs(t, h.engine.RemoveCollateral(lockerOne, half), ErrBelowMinCollateral)
	requireAmount(t, minLocked(), h.locker(lockerOne).LockedAmount)
}

func TestMaxRemovableShrinksWithLiability(t *testing.T) {
	h := newHarness(t)
	h.becomeLocker(lockerOne, scriptOne, e18(10))
	h.mint(scriptOne, liquidatorAddr, 2500)

	// capacity 2500 of value 10000 maps to a quarter of the collateral.
	maxRemovable, err := h.engine.MaxRemovableCollateral(lockerOne)
	require.NoError(t, err)
	requireAmount(t, new(big.Int).Div(e18(10), big.NewInt(4)), maxRemovable)

	h.mint(scriptOne, liquidatorAddr, 2500)
	maxRemovable, err = h.engine.MaxRemovableCollateral(lockerOne)
	require.NoError(t, err)
	requireAmount(t, big.NewInt(0), maxRemovable)
}
