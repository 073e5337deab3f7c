package report

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"

	"corebtc/crypto"
	"corebtc/native/collaterals"
	"corebtc/native/lockers"
)

// Registry is the read surface of the locker engine used for reporting.
type Registry interface {
	Params() (*lockers.Params, error)
	Paused() bool
	Lockers() ([]common.Address, error)
	Candidates() ([]common.Address, error)
	GetLocker(addr common.Address) (*lockers.Locker, error)
	IsLockerActive(addr common.Address) (bool, error)
	CollateralValue(addr common.Address) (*big.Int, error)
	Capacity(addr common.Address) (*big.Int, error)
	HealthFactor(addr common.Address) (*big.Int, error)
	MaxRemovableCollateral(addr common.Address) (*big.Int, error)
	MaximumBuyableCollateral(addr common.Address) (*big.Int, error)
}

// Catalog is the read surface of the collateral catalog used for reporting.
type Catalog interface {
	Entries() ([]collaterals.Entry, error)
	IsUnused(token common.Address) (bool, error)
}

// ParamsView renders the registry parameters.
type ParamsView struct {
	Owner                  string `json:"owner" yaml:"owner"`
	BurnRouter             string `json:"burnRouter" yaml:"burnRouter"`
	PeggedToken            string `json:"peggedToken" yaml:"peggedToken"`
	CollateralRatio        uint64 `json:"collateralRatio" yaml:"collateralRatio"`
	LiquidationRatio       uint64 `json:"liquidationRatio" yaml:"liquidationRatio"`
	LockerPercentageFee    uint64 `json:"lockerPercentageFee" yaml:"lockerPercentageFee"`
	PriceWithDiscountRatio uint64 `json:"priceWithDiscountRatio" yaml:"priceWithDiscountRatio"`
	SlashCompensationRatio uint64 `json:"slashCompensationRatio" yaml:"slashCompensationRatio"`
	InactivationDelay      uint64 `json:"inactivationDelay" yaml:"inactivationDelay"`
	Paused                 bool   `json:"paused" yaml:"paused"`
}

// CollateralView renders one catalog slot.
type CollateralView struct {
	Index           int    `json:"index" yaml:"index"`
	Token           string `json:"token" yaml:"token"`
	Native          bool   `json:"native" yaml:"native"`
	MinLockedAmount string `json:"minLockedAmount" yaml:"minLockedAmount"`
	Unused          bool   `json:"unused" yaml:"unused"`
}

// LockerView renders a candidate or locker record with its solvency figures.
// Figures that depend on pricing are omitted when the oracle cannot value the
// collateral; ValuationError then carries the reason.
type LockerView struct {
	Address               string `json:"address" yaml:"address"`
	Bech32                string `json:"bech32" yaml:"bech32"`
	LockingScript         string `json:"lockingScript" yaml:"lockingScript"`
	LockingScriptType     string `json:"lockingScriptType,omitempty" yaml:"lockingScriptType,omitempty"`
	BitcoinAddress        string `json:"bitcoinAddress,omitempty" yaml:"bitcoinAddress,omitempty"`
	RescueScriptType      string `json:"rescueScriptType" yaml:"rescueScriptType"`
	RescueAddress         string `json:"rescueAddress,omitempty" yaml:"rescueAddress,omitempty"`
	CollateralToken       string `json:"collateralToken" yaml:"collateralToken"`
	LockedAmount          string `json:"lockedAmount" yaml:"lockedAmount"`
	NetMinted             string `json:"netMinted" yaml:"netMinted"`
	SlashingCoreBTCAmount string `json:"slashingCoreBTCAmount" yaml:"slashingCoreBTCAmount"`
	ReservedTokenForSlash string `json:"reservedTokenForSlash" yaml:"reservedTokenForSlash"`
	IsCandidate           bool   `json:"isCandidate" yaml:"isCandidate"`
	IsLocker              bool   `json:"isLocker" yaml:"isLocker"`
	Active                bool   `json:"active" yaml:"active"`
	InactivationTimestamp uint64 `json:"inactivationTimestamp,omitempty" yaml:"inactivationTimestamp,omitempty"`
	CollateralValue       string `json:"collateralValue,omitempty" yaml:"collateralValue,omitempty"`
	Capacity              string `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	HealthFactor          string `json:"healthFactor,omitempty" yaml:"healthFactor,omitempty"`
	Liquidatable          bool   `json:"liquidatable" yaml:"liquidatable"`
	MaxRemovable          string `json:"maxRemovable,omitempty" yaml:"maxRemovable,omitempty"`
	MaxBuyable            string `json:"maxBuyable,omitempty" yaml:"maxBuyable,omitempty"`
	ValuationError        string `json:"valuationError,omitempty" yaml:"valuationError,omitempty"`
}

// Report is a full snapshot of the registry.
type Report struct {
	GeneratedAt time.Time        `json:"generatedAt" yaml:"generatedAt"`
	Network     string           `json:"network" yaml:"network"`
	Params      ParamsView       `json:"params" yaml:"params"`
	Collaterals []CollateralView `json:"collaterals" yaml:"collaterals"`
	Lockers     []LockerView     `json:"lockers" yaml:"lockers"`
	Candidates  []LockerView     `json:"candidates" yaml:"candidates"`
}

// Params renders the registry parameters and pause flag.
func Params(reg Registry) (*ParamsView, error) {
	params, err := reg.Params()
	if err != nil {
		return nil, err
	}
	return &ParamsView{
		Owner:                  params.Owner.Hex(),
		BurnRouter:             params.BurnRouter.Hex(),
		PeggedToken:            params.PeggedToken.Hex(),
		CollateralRatio:        params.CollateralRatio,
		LiquidationRatio:       params.LiquidationRatio,
		LockerPercentageFee:    params.LockerPercentageFee,
		PriceWithDiscountRatio: params.PriceWithDiscountRatio,
		SlashCompensationRatio: params.SlashCompensationRatio,
		InactivationDelay:      params.InactivationDelay,
		Paused:                 reg.Paused(),
	}, nil
}

// Collaterals renders the catalog in slot order.
func Collaterals(catalog Catalog) ([]CollateralView, error) {
	entries, err := catalog.Entries()
	if err != nil {
		return nil, err
	}
	out := make([]CollateralView, 0, len(entries))
	for i, entry := range entries {
		unused, err := catalog.IsUnused(entry.Token)
		if err != nil {
			return nil, fmt.Errorf("usage of %s: %w", entry.Token.Hex(), err)
		}
		out = append(out, CollateralView{
			Index:           i,
			Token:           entry.Token.Hex(),
			Native:          entry.Token == collaterals.NativeToken,
			MinLockedAmount: amount(entry.MinLockedAmount),
			Unused:          unused,
		})
	}
	return out, nil
}

// Locker renders a single record. It returns lockers.ErrNoLocker for
// addresses that hold neither a candidacy nor a locker slot.
func Locker(reg Registry, addr common.Address, net *chaincfg.Params) (*LockerView, error) {
	record, err := reg.GetLocker(addr)
	if err != nil {
		return nil, err
	}
	if !record.Exists() {
		return nil, lockers.ErrNoLocker
	}
	active, err := reg.IsLockerActive(addr)
	if err != nil {
		return nil, err
	}
	view := &LockerView{
		Address:               addr.Hex(),
		Bech32:                crypto.MustEncodeAddress(crypto.AccountPrefix, addr),
		LockingScript:         hex.EncodeToString(record.LockingScript),
		BitcoinAddress:        crypto.LockingScriptAddress(record.LockingScript, net),
		RescueScriptType:      record.RescueType().String(),
		CollateralToken:       record.LockedToken.Hex(),
		LockedAmount:          amount(record.LockedAmount),
		NetMinted:             amount(record.NetMinted),
		SlashingCoreBTCAmount: amount(record.SlashingCoreBTCAmount),
		ReservedTokenForSlash: amount(record.ReservedTokenForSlash),
		IsCandidate:           record.IsCandidate,
		IsLocker:              record.IsLocker,
		Active:                active,
		InactivationTimestamp: record.InactivationTimestamp,
	}
	if scriptType, ok := crypto.ClassifyLockingScript(record.LockingScript); ok {
		view.LockingScriptType = scriptType.String()
	}
	if rescue, err := crypto.RescueAddress(record.RescueType(), record.RescueScript, net); err == nil {
		view.RescueAddress = rescue.EncodeAddress()
	}
	if err := fillSolvency(reg, addr, record, view); err != nil {
		view.ValuationError = err.Error()
	}
	return view, nil
}

func fillSolvency(reg Registry, addr common.Address, record *lockers.Locker, view *LockerView) error {
	value, err := reg.CollateralValue(addr)
	if err != nil {
		return err
	}
	view.CollateralValue = amount(value)
	if !record.IsLocker {
		return nil
	}
	capacity, err := reg.Capacity(addr)
	if err != nil {
		return err
	}
	view.Capacity = amount(capacity)
	removable, err := reg.MaxRemovableCollateral(addr)
	if err != nil {
		return err
	}
	view.MaxRemovable = amount(removable)
	health, err := reg.HealthFactor(addr)
	switch {
	case errors.Is(err, lockers.ErrHealthUndefined):
		return nil
	case err != nil:
		return err
	}
	view.HealthFactor = health.String()
	if health.Cmp(big.NewInt(lockers.HealthFactor)) < 0 {
		view.Liquidatable = true
		buyable, err := reg.MaximumBuyableCollateral(addr)
		if err != nil {
			return err
		}
		view.MaxBuyable = amount(buyable)
	}
	return nil
}

// Lockers renders every admitted locker, or every pending candidate when
// candidates is set.
func Lockers(reg Registry, candidates bool, net *chaincfg.Params) ([]LockerView, error) {
	var (
		addrs []common.Address
		err   error
	)
	if candidates {
		addrs, err = reg.Candidates()
	} else {
		addrs, err = reg.Lockers()
	}
	if err != nil {
		return nil, err
	}
	out := make([]LockerView, 0, len(addrs))
	for _, addr := range addrs {
		view, err := Locker(reg, addr, net)
		if err != nil {
			return nil, fmt.Errorf("locker %s: %w", addr.Hex(), err)
		}
		out = append(out, *view)
	}
	return out, nil
}

// Build assembles a full snapshot.
func Build(reg Registry, catalog Catalog, net *chaincfg.Params, now time.Time) (*Report, error) {
	if net == nil {
		net = &chaincfg.MainNetParams
	}
	params, err := Params(reg)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	entries, err := Collaterals(catalog)
	if err != nil {
		return nil, fmt.Errorf("collaterals: %w", err)
	}
	admitted, err := Lockers(reg, false, net)
	if err != nil {
		return nil, err
	}
	pending, err := Lockers(reg, true, net)
	if err != nil {
		return nil, err
	}
	return &Report{
		GeneratedAt: now.UTC(),
		Network:     net.Name,
		Params:      *params,
		Collaterals: entries,
		Lockers:     admitted,
		Candidates:  pending,
	}, nil
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
