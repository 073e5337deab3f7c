package collaterals

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeToken is the sentinel identifying the chain's native coin. It always
// occupies catalog index 0.
var NativeToken = common.HexToAddress("0x0000000000000000000000000000000000000001")

// Entry is a single accepted collateral asset.
type Entry struct {
	Token           common.Address
	MinLockedAmount *big.Int
}

// Copy returns a deep copy of the entry.
func (e Entry) Copy() Entry {
	out := Entry{Token: e.Token, MinLockedAmount: big.NewInt(0)}
	if e.MinLockedAmount != nil {
		out.MinLockedAmount = new(big.Int).Set(e.MinLockedAmount)
	}
	return out
}

// UsageView answers whether any locker or candidate still references a token.
type UsageView interface {
	IsCollateralUnused(token common.Address) (bool, error)
}

// InsufficientCollateralError reports an amount below the asset minimum.
type InsufficientCollateralError struct {
	Token  common.Address
	Amount *big.Int
	Min    *big.Int
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("collaterals: insufficient collateral for %s: have %s, need %s", e.Token.Hex(), e.Amount, e.Min)
}

type catalogMeta struct {
	Owner       common.Address
	Lockers     common.Address
	Initialized bool
}
