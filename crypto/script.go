package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptType enumerates the Bitcoin output types a rescue script may use.
type ScriptType uint8

const (
	P2PK ScriptType = iota
	P2PKH
	P2SH
	P2WPKH
	P2WSH
	P2TR
)

var ErrInvalidScript = errors.New("invalid bitcoin script")

var scriptTypeNames = map[ScriptType]string{
	P2PK:   "p2pk",
	P2PKH:  "p2pkh",
	P2SH:   "p2sh",
	P2WPKH: "p2wpkh",
	P2WSH:  "p2wsh",
	P2TR:   "p2tr",
}

func (t ScriptType) String() string {
	if name, ok := scriptTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Valid reports whether the type is one of the supported output types.
func (t ScriptType) Valid() bool {
	_, ok := scriptTypeNames[t]
	return ok
}

// ParseScriptType resolves a name such as "p2wpkh".
func ParseScriptType(name string) (ScriptType, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for t, n := range scriptTypeNames {
		if n == normalized {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown script type %q", ErrInvalidScript, name)
}

// NetworkParams maps a network name to its chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", name)
	}
}

// RescueAddress builds the address committed to by a rescue payload. The
// payload is the public key for P2PK, the 20-byte hash for P2PKH, P2SH and
// P2WPKH, and the 32-byte program for P2WSH and P2TR.
func RescueAddress(t ScriptType, payload []byte, params *chaincfg.Params) (btcutil.Address, error) {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	var (
		addr btcutil.Address
		err  error
	)
	switch t {
	case P2PK:
		addr, err = btcutil.NewAddressPubKey(payload, params)
	case P2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(payload, params)
	case P2SH:
		addr, err = btcutil.NewAddressScriptHashFromHash(payload, params)
	case P2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(payload, params)
	case P2WSH:
		addr, err = btcutil.NewAddressWitnessScriptHash(payload, params)
	case P2TR:
		addr, err = btcutil.NewAddressTaproot(payload, params)
	default:
		return nil, fmt.Errorf("%w: unsupported script type %d", ErrInvalidScript, uint8(t))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrInvalidScript, t, err)
	}
	return addr, nil
}

// ValidateRescueScript checks that the payload is well formed for its type.
func ValidateRescueScript(t ScriptType, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty rescue script", ErrInvalidScript)
	}
	_, err := RescueAddress(t, payload, nil)
	return err
}

// RescueOutputScript returns the full output script paying to the rescue
// payload.
func RescueOutputScript(t ScriptType, payload []byte, params *chaincfg.Params) ([]byte, error) {
	addr, err := RescueAddress(t, payload, params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// LockingScriptFromAddress converts an encoded Bitcoin address into the
// output script that identifies a locker on the Bitcoin network.
func LockingScriptFromAddress(address string, params *chaincfg.Params) ([]byte, error) {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	addr, err := btcutil.DecodeAddress(strings.TrimSpace(address), params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return txscript.PayToAddrScript(addr)
}

// ClassifyLockingScript reports the standard type of an output script. The
// boolean is false for non-standard scripts, which remain valid locking
// scripts since the registry treats them as opaque bytes.
func ClassifyLockingScript(script []byte) (ScriptType, bool) {
	switch txscript.GetScriptClass(script) {
	case txscript.PubKeyTy:
		return P2PK, true
	case txscript.PubKeyHashTy:
		return P2PKH, true
	case txscript.ScriptHashTy:
		return P2SH, true
	case txscript.WitnessV0PubKeyHashTy:
		return P2WPKH, true
	case txscript.WitnessV0ScriptHashTy:
		return P2WSH, true
	case txscript.WitnessV1TaprootTy:
		return P2TR, true
	default:
		return 0, false
	}
}

// LockingScriptAddress renders a standard output script as an address string,
// or returns the empty string when the script has no single address.
func LockingScriptAddress(script []byte, params *chaincfg.Params) string {
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil || len(addrs) != 1 {
		return ""
	}
	return addrs[0].EncodeAddress()
}
