package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var errNilOracle = errors.New("pricing: oracle not configured")

// DecimalsSource resolves the precision of collateral tokens.
type DecimalsSource interface {
	Decimals(token common.Address) (uint8, error)
}

// Adapter converts between collateral-token units and pegged-token units.
type Adapter struct {
	oracle         Oracle
	decimals       DecimalsSource
	pegged         common.Address
	peggedDecimals uint8
}

// NewAdapter binds an oracle to the pegged token it quotes against.
func NewAdapter(oracle Oracle, decimals DecimalsSource, pegged common.Address, peggedDecimals uint8) *Adapter {
	return &Adapter{
		oracle:         oracle,
		decimals:       decimals,
		pegged:         pegged,
		peggedDecimals: peggedDecimals,
	}
}

// SetOracle swaps the backing oracle.
func (a *Adapter) SetOracle(oracle Oracle) { a.oracle = oracle }

// PeggedToken returns the address of the pegged token.
func (a *Adapter) PeggedToken() common.Address { return a.pegged }

// PeggedDecimals returns the precision of the pegged token.
func (a *Adapter) PeggedDecimals() uint8 { return a.peggedDecimals }

// CollateralDecimals returns the precision of a collateral token.
func (a *Adapter) CollateralDecimals(token common.Address) (uint8, error) {
	if a == nil || a.decimals == nil {
		return 0, fmt.Errorf("pricing: decimals source not configured")
	}
	return a.decimals.Decimals(token)
}

// CollateralToPegged values amount of collateral token in pegged-token units.
func (a *Adapter) CollateralToPegged(token common.Address, amount *big.Int) (*big.Int, error) {
	if a == nil || a.oracle == nil {
		return nil, errNilOracle
	}
	dec, err := a.CollateralDecimals(token)
	if err != nil {
		return nil, err
	}
	out, err := a.oracle.EquivalentOutputAmount(amount, dec, a.peggedDecimals, token, a.pegged)
	if err != nil {
		return nil, fmt.Errorf("pricing: value %s collateral: %w", token.Hex(), err)
	}
	return out, nil
}

// PeggedToCollateral converts an amount of pegged token into collateral units.
func (a *Adapter) PeggedToCollateral(token common.Address, amount *big.Int) (*big.Int, error) {
	if a == nil || a.oracle == nil {
		return nil, errNilOracle
	}
	dec, err := a.CollateralDecimals(token)
	if err != nil {
		return nil, err
	}
	out, err := a.oracle.EquivalentOutputAmount(amount, a.peggedDecimals, dec, a.pegged, token)
	if err != nil {
		return nil, fmt.Errorf("pricing: convert pegged into %s: %w", token.Hex(), err)
	}
	return out, nil
}

// PriceOfOneUnit returns the pegged-token value of one whole collateral token
// (10^decimals base units).
func (a *Adapter) PriceOfOneUnit(token common.Address) (*big.Int, error) {
	dec, err := a.CollateralDecimals(token)
	if err != nil {
		return nil, err
	}
	return a.CollateralToPegged(token, pow10(dec))
}

// OneUnit returns 10^decimals for the collateral token.
func (a *Adapter) OneUnit(token common.Address) (*big.Int, error) {
	dec, err := a.CollateralDecimals(token)
	if err != nil {
		return nil, err
	}
	return pow10(dec), nil
}
