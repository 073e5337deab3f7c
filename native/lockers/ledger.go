package lockers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger is the fungible token bookkeeping the registry settles against.
// core/state.Manager implements it.
type TokenLedger interface {
	Decimals(token common.Address) (uint8, error)
	Balance(token, owner common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Mint(token, authority, to common.Address, amount *big.Int) error
	Burn(token, authority, from common.Address, amount *big.Int) error
}

// LedgerVault keeps locked collateral on the registry account of a token
// ledger. Native coin deposits are debited from the sender directly since the
// value travels with the call; token deposits spend the allowance granted to
// the registry account.
type LedgerVault struct {
	ledger  TokenLedger
	account common.Address
	native  common.Address
}

// NewLedgerVault binds the vault to the registry account. native identifies
// the native coin sentinel.
func NewLedgerVault(ledger TokenLedger, account, native common.Address) *LedgerVault {
	return &LedgerVault{ledger: ledger, account: account, native: native}
}

func (v *LedgerVault) Decimals(token common.Address) (uint8, error) {
	return v.ledger.Decimals(token)
}

func (v *LedgerVault) Pull(token, from common.Address, amount *big.Int) error {
	if token == v.native {
		return v.ledger.Transfer(token, from, v.account, amount)
	}
	return v.ledger.TransferFrom(token, v.account, from, v.account, amount)
}

func (v *LedgerVault) Push(token, to common.Address, amount *big.Int) error {
	return v.ledger.Transfer(token, v.account, to, amount)
}

// LedgerPeggedToken drives the pegged token through a token ledger, using the
// registry account as mint and burn authority.
type LedgerPeggedToken struct {
	ledger  TokenLedger
	token   common.Address
	account common.Address
}

func NewLedgerPeggedToken(ledger TokenLedger, token, account common.Address) *LedgerPeggedToken {
	return &LedgerPeggedToken{ledger: ledger, token: token, account: account}
}

func (p *LedgerPeggedToken) Decimals() (uint8, error) {
	return p.ledger.Decimals(p.token)
}

func (p *LedgerPeggedToken) BalanceOf(owner common.Address) (*big.Int, error) {
	return p.ledger.Balance(p.token, owner)
}

func (p *LedgerPeggedToken) Mint(to common.Address, amount *big.Int) error {
	return p.ledger.Mint(p.token, p.account, to, amount)
}

func (p *LedgerPeggedToken) Burn(amount *big.Int) error {
	return p.ledger.Burn(p.token, p.account, p.account, amount)
}

func (p *LedgerPeggedToken) Transfer(to common.Address, amount *big.Int) error {
	return p.ledger.Transfer(p.token, p.account, to, amount)
}

func (p *LedgerPeggedToken) TransferFrom(owner common.Address, amount *big.Int) error {
	return p.ledger.TransferFrom(p.token, p.account, owner, p.account, amount)
}
