package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// NativeAlias names the chain coin in collateral and feed entries.
const NativeAlias = "native"

type Config struct {
	DataDir        string       `toml:"DataDir"`
	BitcoinNetwork string       `toml:"BitcoinNetwork"`
	Lockers        Lockers      `toml:"lockers"`
	Collaterals    []Collateral `toml:"collaterals"`
	Oracle         Oracle       `toml:"oracle"`
	Storage        Storage      `toml:"storage"`
	Audit          Audit        `toml:"audit"`
	Log            Log          `toml:"log"`
	Telemetry      Telemetry    `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the configuration of a single-node development network.
func Default() *Config {
	return &Config{
		DataDir:        "./corebtc-data",
		BitcoinNetwork: "regtest",
		Lockers: Lockers{
			Owner:                  "0x00000000000000000000000000000000000000a0",
			BurnRouter:             "0x00000000000000000000000000000000000000a1",
			Registry:               "0x00000000000000000000000000000000000000a3",
			PeggedToken:            "0x00000000000000000000000000000000000000d0",
			PeggedSymbol:           "CBTC",
			PeggedDecimals:         8,
			CollateralRatio:        20000,
			LiquidationRatio:       15000,
			LockerPercentageFee:    15,
			PriceWithDiscountRatio: 9500,
			SlashCompensationRatio: 500,
			InactivationDelaySecs:  7 * 24 * 3600,
			Minters:                []string{},
			Burners:                []string{},
		},
		Collaterals: []Collateral{
			{Token: NativeAlias, Symbol: "CORE", Decimals: 18, MinLockedAmount: "5000000000000000000"},
		},
		Oracle: Oracle{
			AcceptableDelaySecs: 3600,
			Feeds:               []Feed{},
		},
		Storage: Storage{Backend: "leveldb"},
		Audit: Audit{
			ListenAddress:      ":8090",
			DSN:                "",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			StreamBuffer:       64,
		},
		Log: Log{Level: "info", Env: "dev", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
		Telemetry: Telemetry{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BitcoinNetwork) == "" {
		c.BitcoinNetwork = "mainnet"
	}
	if strings.TrimSpace(c.Storage.Backend) == "" {
		c.Storage.Backend = "leveldb"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "state")
	}
	if strings.TrimSpace(c.Audit.DSN) == "" {
		c.Audit.DSN = filepath.Join(c.DataDir, "audit.db")
	}
	if c.Lockers.Minters == nil {
		c.Lockers.Minters = []string{}
	}
	if c.Lockers.Burners == nil {
		c.Lockers.Burners = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
