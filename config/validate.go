package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"corebtc/crypto"
)

var (
	MinAcceptableDelaySeconds = uint64(60)
)

func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if _, err := crypto.NetworkParams(cfg.BitcoinNetwork); err != nil {
		return fmt.Errorf("bitcoin: %w", err)
	}

	params, err := cfg.Lockers.Params()
	if err != nil {
		return fmt.Errorf("lockers: %w", err)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("lockers: %w", err)
	}
	registry, err := cfg.Lockers.RegistryAccount()
	if err != nil {
		return fmt.Errorf("lockers: %w", err)
	}
	if registry == params.Owner || registry == params.PeggedToken {
		return fmt.Errorf("lockers: registry account must be distinct from owner and pegged token")
	}
	if _, _, err := cfg.Lockers.RoleAccounts(); err != nil {
		return fmt.Errorf("lockers: %w", err)
	}

	if len(cfg.Collaterals) == 0 {
		return fmt.Errorf("collaterals: at least the native collateral is required")
	}
	seen := make(map[common.Address]struct{}, len(cfg.Collaterals))
	for i, entry := range cfg.Collaterals {
		token, min, err := entry.Parse()
		if err != nil {
			return fmt.Errorf("collaterals[%d]: %w", i, err)
		}
		if i == 0 && !strings.EqualFold(strings.TrimSpace(entry.Token), NativeAlias) {
			return fmt.Errorf("collaterals[0]: first entry must be %q", NativeAlias)
		}
		if min.Sign() == 0 {
			return fmt.Errorf("collaterals[%d]: MinLockedAmount must be > 0", i)
		}
		if _, dup := seen[token]; dup {
			return fmt.Errorf("collaterals[%d]: duplicate token %s", i, entry.Token)
		}
		seen[token] = struct{}{}
	}

	if cfg.Oracle.AcceptableDelaySecs < MinAcceptableDelaySeconds {
		return fmt.Errorf("oracle: AcceptableDelaySecs must be >= %d", MinAcceptableDelaySeconds)
	}
	for i, feed := range cfg.Oracle.Feeds {
		_, price, err := feed.Parse()
		if err != nil {
			return fmt.Errorf("oracle.feeds[%d]: %w", i, err)
		}
		if price.Sign() == 0 {
			return fmt.Errorf("oracle.feeds[%d]: price must be > 0", i)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "leveldb", "memory":
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
	if cfg.Audit.RateLimitPerSecond < 0 || cfg.Audit.RateLimitBurst < 0 {
		return fmt.Errorf("audit: rate limits must not be negative")
	}
	return nil
}
