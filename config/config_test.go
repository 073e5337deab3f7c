package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"corebtc/native/collaterals"
)

const sampleConfig = `DataDir = "./data"
BitcoinNetwork = "testnet"

[lockers]
Owner = "0x00000000000000000000000000000000000000a0"
BurnRouter = "0x00000000000000000000000000000000000000a1"
Registry = "0x00000000000000000000000000000000000000a3"
PeggedToken = "0x00000000000000000000000000000000000000d0"
PeggedSymbol = "CBTC"
PeggedDecimals = 8
CollateralRatio = 20000
LiquidationRatio = 15000
LockerPercentageFee = 20
PriceWithDiscountRatio = 9500
SlashCompensationRatio = 100
InactivationDelaySecs = 86400
Minters = ["0x00000000000000000000000000000000000000a2"]
Burners = ["0x00000000000000000000000000000000000000a1"]

[[collaterals]]
Token = "native"
Symbol = "CORE"
Decimals = 18
MinLockedAmount = "5_000_000_000_000_000_000"

[[collaterals]]
Token = "0x00000000000000000000000000000000000000e0"
Symbol = "USDT"
Decimals = 6
MinLockedAmount = "1000000000"

[oracle]
AcceptableDelaySecs = 600

[[oracle.Feeds]]
Token = "native"
Price = "150000000"
Decimals = 8

[audit]
ListenAddress = "127.0.0.1:9100"
RateLimitPerSecond = 5
RateLimitBurst = 10
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	require.Equal(t, "testnet", cfg.BitcoinNetwork)
	require.Len(t, cfg.Collaterals, 2)
	require.Equal(t, "127.0.0.1:9100", cfg.Audit.ListenAddress)
	require.Equal(t, filepath.Join("./data", "state"), cfg.Storage.Path)
	require.Equal(t, filepath.Join("./data", "audit.db"), cfg.Audit.DSN)
	require.Equal(t, "leveldb", cfg.Storage.Backend)

	params, err := cfg.Lockers.Params()
	require.NoError(t, err)
	require.Equal(t, uint64(86400), params.InactivationDelay)
	require.Equal(t, common.HexToAddress("0xa1"), params.BurnRouter)

	token, min, err := cfg.Collaterals[0].Parse()
	require.NoError(t, err)
	require.Equal(t, collaterals.NativeToken, token)
	want, _ := new(big.Int).SetString("5000000000000000000", 10)
	if min.Cmp(want) != 0 {
		t.Fatalf("unexpected min locked amount %s", min)
	}

	minters, burners, err := cfg.Lockers.RoleAccounts()
	require.NoError(t, err)
	require.Equal(t, []common.Address{common.HexToAddress("0xa2")}, minters)
	require.Equal(t, []common.Address{common.HexToAddress("0xa1")}, burners)

	feedToken, price, err := cfg.Oracle.Feeds[0].Parse()
	require.NoError(t, err)
	require.Equal(t, collaterals.NativeToken, feedToken)
	require.Equal(t, int64(150000000), price.Int64())
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))
	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Lockers, reloaded.Lockers)
	require.Equal(t, cfg.Collaterals, reloaded.Collaterals)
	require.Equal(t, cfg.Storage, reloaded.Storage)
	require.Equal(t, cfg.Audit, reloaded.Audit)
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ratio order", func(c *Config) { c.Lockers.CollateralRatio = c.Lockers.LiquidationRatio }, "lockers"},
		{"liquidation below 100%", func(c *Config) { c.Lockers.LiquidationRatio = 9000 }, "lockers"},
		{"fee above 100%", func(c *Config) { c.Lockers.LockerPercentageFee = 10001 }, "lockers"},
		{"bad owner", func(c *Config) { c.Lockers.Owner = "0x123" }, "Owner"},
		{"registry reused", func(c *Config) { c.Lockers.Registry = c.Lockers.Owner }, "registry"},
		{"bad minter", func(c *Config) { c.Lockers.Minters = []string{"nope"} }, "Minters[0]"},
		{"no collaterals", func(c *Config) { c.Collaterals = nil }, "collaterals"},
		{"native not first", func(c *Config) {
			c.Collaterals[0].Token = "0x00000000000000000000000000000000000000e0"
		}, "first entry"},
		{"zero minimum", func(c *Config) { c.Collaterals[0].MinLockedAmount = "0" }, "MinLockedAmount"},
		{"duplicate", func(c *Config) { c.Collaterals = append(c.Collaterals, c.Collaterals[0]) }, "duplicate"},
		{"short delay", func(c *Config) { c.Oracle.AcceptableDelaySecs = 1 }, "oracle"},
		{"zero price", func(c *Config) { c.Oracle.Feeds = []Feed{{Token: "native", Price: "0"}} }, "price"},
		{"backend", func(c *Config) { c.Storage.Backend = "bolt" }, "storage"},
		{"network", func(c *Config) { c.BitcoinNetwork = "litecoin" }, "bitcoin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseUintAmount(t *testing.T) {
	v, err := parseUintAmount(" 1_000 ")
	require.NoError(t, err)
	require.Equal(t, int64(1000), v.Int64())
	_, err = parseUintAmount("-5")
	require.Error(t, err)
	_, err = parseUintAmount("1e18")
	require.Error(t, err)
}
