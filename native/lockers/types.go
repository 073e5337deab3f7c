package lockers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/crypto"
)

const (
	// OneHundredPercent is the basis-point denominator used by every ratio.
	OneHundredPercent = 10_000
	// HealthFactor is the threshold below which a locker can be liquidated.
	HealthFactor = 10_000
	// UpperHealthFactor is the health a liquidation is allowed to restore.
	UpperHealthFactor = 12_500
)

// Locker is the registry record kept for every custodian identity. The record
// is zeroed, not deleted, when a candidacy is revoked or a locker removes
// itself.
type Locker struct {
	LockingScript         []byte
	RescueScriptType      uint8
	RescueScript          []byte
	LockedToken           common.Address
	LockedAmount          *big.Int
	NetMinted             *big.Int
	SlashingCoreBTCAmount *big.Int
	ReservedTokenForSlash *big.Int
	IsCandidate           bool
	IsLocker              bool
	IsScriptHash          bool
	InactivationTimestamp uint64
}

func newLocker() *Locker {
	return &Locker{
		LockedAmount:          big.NewInt(0),
		NetMinted:             big.NewInt(0),
		SlashingCoreBTCAmount: big.NewInt(0),
		ReservedTokenForSlash: big.NewInt(0),
	}
}

func (l *Locker) normalize() {
	if l.LockedAmount == nil {
		l.LockedAmount = big.NewInt(0)
	}
	if l.NetMinted == nil {
		l.NetMinted = big.NewInt(0)
	}
	if l.SlashingCoreBTCAmount == nil {
		l.SlashingCoreBTCAmount = big.NewInt(0)
	}
	if l.ReservedTokenForSlash == nil {
		l.ReservedTokenForSlash = big.NewInt(0)
	}
}

// Copy returns a deep copy of the record.
func (l *Locker) Copy() *Locker {
	if l == nil {
		return nil
	}
	out := *l
	out.LockingScript = append([]byte(nil), l.LockingScript...)
	out.RescueScript = append([]byte(nil), l.RescueScript...)
	out.LockedAmount = copyAmount(l.LockedAmount)
	out.NetMinted = copyAmount(l.NetMinted)
	out.SlashingCoreBTCAmount = copyAmount(l.SlashingCoreBTCAmount)
	out.ReservedTokenForSlash = copyAmount(l.ReservedTokenForSlash)
	return &out
}

// Exists reports whether the address currently holds a candidacy or an
// admitted locker slot.
func (l *Locker) Exists() bool {
	return l != nil && (l.IsCandidate || l.IsLocker)
}

// RescueType returns the rescue script type as a crypto.ScriptType.
func (l *Locker) RescueType() crypto.ScriptType {
	return crypto.ScriptType(l.RescueScriptType)
}

// RequestParams carries the candidacy request submitted by a custodian.
type RequestParams struct {
	LockingScript    []byte
	LockedAmount     *big.Int
	RescueScriptType crypto.ScriptType
	RescueScript     []byte
	CollateralToken  common.Address
}

// Counters tracks the registry population.
type Counters struct {
	TotalCandidates uint64
	TotalLockers    uint64
}

// SlashResult summarises the collateral movements of a slash.
type SlashResult struct {
	RewardPaid      *big.Int
	RecipientAmount *big.Int
	Reserved        *big.Int
}

// LiquidationResult summarises a liquidation or slashed collateral sale.
type LiquidationResult struct {
	Collateral *big.Int
	Cost       *big.Int
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
