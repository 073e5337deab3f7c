package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	ErrUnknownToken          = errors.New("token not registered")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrMintUnauthorized      = errors.New("caller is not a mint authority")
	ErrMintPaused            = errors.New("token minting paused")
	ErrAmountOverflow        = errors.New("amount exceeds 256 bits")
)

// TokenMetadata describes a fungible token tracked by the ledger. Addresses
// listed in MintAuthorities may mint and burn supply.
type TokenMetadata struct {
	Address         common.Address
	Symbol          string
	Name            string
	Decimals        uint8
	MintAuthorities []common.Address
	MintPaused      bool
}

func (m *Manager) loadTokenList() ([]common.Address, error) {
	data, err := m.get(tokenListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []common.Address{}, nil
	}
	var list []common.Address
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) writeTokenList(list []common.Address) error {
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	m.put(tokenListKey, encoded)
	return nil
}

func (m *Manager) loadTokenMetadata(token common.Address) (*TokenMetadata, error) {
	data, err := m.get(tokenMetadataKey(token))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (m *Manager) writeTokenMetadata(meta *TokenMetadata) error {
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	m.put(tokenMetadataKey(meta.Address), encoded)
	return nil
}

func (m *Manager) requireToken(token common.Address) (*TokenMetadata, error) {
	meta, err := m.loadTokenMetadata(token)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return meta, nil
}

// RegisterToken stores the metadata for a token and records it in the token
// index.
func (m *Manager) RegisterToken(token common.Address, symbol, name string, decimals uint8) error {
	if token == (common.Address{}) {
		return fmt.Errorf("token address must not be zero")
	}
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return fmt.Errorf("token symbol must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	existing, err := m.loadTokenMetadata(token)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("token %s already registered", token.Hex())
	}
	meta := &TokenMetadata{
		Address:  token,
		Symbol:   normalized,
		Name:     strings.TrimSpace(name),
		Decimals: decimals,
	}
	if err := m.writeTokenMetadata(meta); err != nil {
		return err
	}
	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	list = append(list, token)
	sort.Slice(list, func(i, j int) bool { return bytes.Compare(list[i][:], list[j][:]) < 0 })
	return m.writeTokenList(list)
}

// SetTokenMintAuthority grants or revokes mint/burn capability over the token.
func (m *Manager) SetTokenMintAuthority(token, authority common.Address, allowed bool) error {
	meta, err := m.requireToken(token)
	if err != nil {
		return err
	}
	filtered := meta.MintAuthorities[:0:0]
	for _, existing := range meta.MintAuthorities {
		if existing != authority {
			filtered = append(filtered, existing)
		}
	}
	if allowed {
		filtered = append(filtered, authority)
	}
	meta.MintAuthorities = filtered
	return m.writeTokenMetadata(meta)
}

// SetTokenMintPaused toggles minting for the token.
func (m *Manager) SetTokenMintPaused(token common.Address, paused bool) error {
	meta, err := m.requireToken(token)
	if err != nil {
		return err
	}
	meta.MintPaused = paused
	return m.writeTokenMetadata(meta)
}

// Token returns the registered metadata, or nil when the token is unknown.
func (m *Manager) Token(token common.Address) (*TokenMetadata, error) {
	return m.loadTokenMetadata(token)
}

// TokenList returns the registered token addresses in byte order.
func (m *Manager) TokenList() ([]common.Address, error) {
	return m.loadTokenList()
}

// Decimals returns the precision of a registered token.
func (m *Manager) Decimals(token common.Address) (uint8, error) {
	meta, err := m.requireToken(token)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	data, err := m.get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) writeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrAmountOverflow
	}
	if amount.Sign() == 0 {
		m.del(key)
		return nil
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	m.put(key, encoded)
	return nil
}

// SetBalance stores an account balance for the provided token.
func (m *Manager) SetBalance(token, owner common.Address, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if _, err := m.requireToken(token); err != nil {
		return err
	}
	return m.writeAmount(balanceKey(token, owner), amount)
}

// Balance retrieves a token balance for the provided account.
func (m *Manager) Balance(token, owner common.Address) (*big.Int, error) {
	return m.loadAmount(balanceKey(token, owner))
}

// TotalSupply returns the minted-minus-burned supply of the token.
func (m *Manager) TotalSupply(token common.Address) (*big.Int, error) {
	return m.loadAmount(supplyKey(token))
}

// Allowance returns how much spender may pull from owner.
func (m *Manager) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	return m.loadAmount(allowanceKey(token, owner, spender))
}

// Approve sets the amount spender may pull from owner.
func (m *Manager) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("allowance must not be negative")
	}
	if _, err := m.requireToken(token); err != nil {
		return err
	}
	return m.writeAmount(allowanceKey(token, owner, spender), amount)
}

// Transfer moves amount of token between two accounts.
func (m *Manager) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount must not be negative")
	}
	if _, err := m.requireToken(token); err != nil {
		return err
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := m.Balance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amount)
	}
	toBal, err := m.Balance(token, to)
	if err != nil {
		return err
	}
	if err := m.writeAmount(balanceKey(token, from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.writeAmount(balanceKey(token, to), new(big.Int).Add(toBal, amount))
}

// TransferFrom moves amount from owner to recipient using spender's allowance.
func (m *Manager) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount must not be negative")
	}
	allowance, err := m.Allowance(token, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := m.writeAmount(allowanceKey(token, from, spender), new(big.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	return m.Transfer(token, from, to, amount)
}

func (m *Manager) requireAuthority(token, authority common.Address) (*TokenMetadata, error) {
	meta, err := m.requireToken(token)
	if err != nil {
		return nil, err
	}
	for _, allowed := range meta.MintAuthorities {
		if allowed == authority {
			return meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMintUnauthorized, authority.Hex())
}

// Mint creates new supply credited to the recipient.
func (m *Manager) Mint(token, authority, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("mint amount must not be negative")
	}
	meta, err := m.requireAuthority(token, authority)
	if err != nil {
		return err
	}
	if meta.MintPaused {
		return ErrMintPaused
	}
	if amount.Sign() == 0 {
		return nil
	}
	supply, err := m.TotalSupply(token)
	if err != nil {
		return err
	}
	balance, err := m.Balance(token, to)
	if err != nil {
		return err
	}
	if err := m.writeAmount(supplyKey(token), new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	return m.writeAmount(balanceKey(token, to), new(big.Int).Add(balance, amount))
}

// Burn destroys supply held by the account.
func (m *Manager) Burn(token, authority, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("burn amount must not be negative")
	}
	if _, err := m.requireAuthority(token, authority); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := m.Balance(token, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amount)
	}
	supply, err := m.TotalSupply(token)
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return fmt.Errorf("burn exceeds supply")
	}
	if err := m.writeAmount(balanceKey(token, from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return m.writeAmount(supplyKey(token), new(big.Int).Sub(supply, amount))
}

// Credit allocates new supply to an account without a mint authority. It backs
// genesis allocations and faucet-style funding on test networks.
func (m *Manager) Credit(token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("credit amount must not be negative")
	}
	if _, err := m.requireToken(token); err != nil {
		return err
	}
	supply, err := m.TotalSupply(token)
	if err != nil {
		return err
	}
	balance, err := m.Balance(token, to)
	if err != nil {
		return err
	}
	if err := m.writeAmount(supplyKey(token), new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	return m.writeAmount(balanceKey(token, to), new(big.Int).Add(balance, amount))
}
