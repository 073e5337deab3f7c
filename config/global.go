package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/crypto"
	"corebtc/native/collaterals"
	"corebtc/native/lockers"
)

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, "_", ""))
	if trimmed == "" {
		return nil, fmt.Errorf("amount must not be empty")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return value, nil
}

// ParseAmount parses a non-negative base-10 amount. Underscores may group
// digits.
func ParseAmount(raw string) (*big.Int, error) {
	return parseUintAmount(raw)
}

// TokenAddress resolves a configured token, accepting NativeAlias for the
// chain coin.
func TokenAddress(raw string) (common.Address, error) {
	if strings.EqualFold(strings.TrimSpace(raw), NativeAlias) {
		return collaterals.NativeToken, nil
	}
	return crypto.ParseAddress(raw)
}

// Params converts the section into registry genesis parameters.
func (l Lockers) Params() (lockers.Params, error) {
	var (
		params lockers.Params
		err    error
	)
	if params.Owner, err = crypto.ParseAddress(l.Owner); err != nil {
		return params, fmt.Errorf("invalid lockers.Owner: %w", err)
	}
	if params.BurnRouter, err = crypto.ParseAddress(l.BurnRouter); err != nil {
		return params, fmt.Errorf("invalid lockers.BurnRouter: %w", err)
	}
	if params.PeggedToken, err = crypto.ParseAddress(l.PeggedToken); err != nil {
		return params, fmt.Errorf("invalid lockers.PeggedToken: %w", err)
	}
	params.CollateralRatio = l.CollateralRatio
	params.LiquidationRatio = l.LiquidationRatio
	params.LockerPercentageFee = l.LockerPercentageFee
	params.PriceWithDiscountRatio = l.PriceWithDiscountRatio
	params.SlashCompensationRatio = l.SlashCompensationRatio
	params.InactivationDelay = l.InactivationDelaySecs
	return params, nil
}

// RegistryAccount returns the account custodying collateral.
func (l Lockers) RegistryAccount() (common.Address, error) {
	addr, err := crypto.ParseAddress(l.Registry)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid lockers.Registry: %w", err)
	}
	return addr, nil
}

// RoleAccounts parses the configured minters and burners.
func (l Lockers) RoleAccounts() (minters, burners []common.Address, err error) {
	parse := func(field string, raw []string) ([]common.Address, error) {
		out := make([]common.Address, 0, len(raw))
		for i, entry := range raw {
			addr, err := crypto.ParseAddress(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid lockers.%s[%d]: %w", field, i, err)
			}
			out = append(out, addr)
		}
		return out, nil
	}
	if minters, err = parse("Minters", l.Minters); err != nil {
		return nil, nil, err
	}
	if burners, err = parse("Burners", l.Burners); err != nil {
		return nil, nil, err
	}
	return minters, burners, nil
}

// Parse returns the collateral token and its minimum locked amount.
func (c Collateral) Parse() (common.Address, *big.Int, error) {
	token, err := TokenAddress(c.Token)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid collateral token: %w", err)
	}
	min, err := parseUintAmount(c.MinLockedAmount)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid collaterals.MinLockedAmount for %s: %w", c.Token, err)
	}
	return token, min, nil
}

// Parse returns the feed token and its price.
func (f Feed) Parse() (common.Address, *big.Int, error) {
	token, err := TokenAddress(f.Token)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid oracle feed token: %w", err)
	}
	price, err := parseUintAmount(f.Price)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("invalid oracle feed price for %s: %w", f.Token, err)
	}
	return token, price, nil
}
