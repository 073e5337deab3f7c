package logging

import (
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

const hashedPrefix = "keccak:"

// Keys carrying custody destinations. Their values only leave the process
// hashed.
var sensitiveKeys = map[string]struct{}{
	"locking_script":  {},
	"rescue_script":   {},
	"script":          {},
	"bitcoin_address": {},
	"rescue_address":  {},
}

// IsSensitive reports whether values logged under key are redacted.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// redactAttr masks clear-text values of sensitive keys. Values produced by
// HashedScript pass through.
func redactAttr(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindString {
		if s := value.String(); s == "" || strings.HasPrefix(s, hashedPrefix) {
			return attr
		}
	}
	return slog.String(attr.Key, RedactedValue)
}

// HashedScript logs a Bitcoin script by the first eight bytes of its keccak
// digest.
func HashedScript(key string, script []byte) slog.Attr {
	if len(script) == 0 {
		return slog.String(key, "")
	}
	digest := crypto.Keccak256(script)
	return slog.String(key, hashedPrefix+hex.EncodeToString(digest[:8]))
}
