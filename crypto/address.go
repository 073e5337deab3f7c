package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// AddressPrefix defines the human-readable part used when rendering
// addresses as bech32 strings.
type AddressPrefix string

const (
	// AccountPrefix marks ordinary accounts (custodians, reporters, buyers).
	AccountPrefix AddressPrefix = "cbtc"
	// TokenPrefix marks token contracts, including the native-coin sentinel.
	TokenPrefix AddressPrefix = "ctok"
)

// EncodeAddress renders a 20-byte address as bech32 under the prefix.
func EncodeAddress(prefix AddressPrefix, addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(string(prefix), conv)
}

// MustEncodeAddress is EncodeAddress for call sites that log or display.
func MustEncodeAddress(prefix AddressPrefix, addr common.Address) string {
	encoded, err := EncodeAddress(prefix, addr)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses a bech32 address and returns its prefix and bytes.
func DecodeAddress(addrStr string) (AddressPrefix, common.Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return "", common.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return "", common.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != common.AddressLength {
		return "", common.Address{}, fmt.Errorf("address must be %d bytes, got %d", common.AddressLength, len(conv))
	}
	return AddressPrefix(prefix), common.BytesToAddress(conv), nil
}

// ParseAddress accepts either a 0x-prefixed hex address or a bech32 address.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address must not be empty")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return common.Address{}, fmt.Errorf("invalid hex address %q", trimmed)
		}
		return common.HexToAddress(trimmed), nil
	}
	_, addr, err := DecodeAddress(trimmed)
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}
