package config

// Lockers holds the genesis parameters of the locker registry. Ratios and fees
// are expressed in basis points.
type Lockers struct {
	Owner                  string   `toml:"Owner"`
	BurnRouter             string   `toml:"BurnRouter"`
	Registry               string   `toml:"Registry"`
	PeggedToken            string   `toml:"PeggedToken"`
	PeggedSymbol           string   `toml:"PeggedSymbol"`
	PeggedDecimals         uint8    `toml:"PeggedDecimals"`
	CollateralRatio        uint64   `toml:"CollateralRatio"`
	LiquidationRatio       uint64   `toml:"LiquidationRatio"`
	LockerPercentageFee    uint64   `toml:"LockerPercentageFee"`
	PriceWithDiscountRatio uint64   `toml:"PriceWithDiscountRatio"`
	SlashCompensationRatio uint64   `toml:"SlashCompensationRatio"`
	InactivationDelaySecs  uint64   `toml:"InactivationDelaySecs"`
	Minters                []string `toml:"Minters"`
	Burners                []string `toml:"Burners"`
}

// Collateral is one accepted collateral asset. Token may be "native" for the
// chain coin.
type Collateral struct {
	Token           string `toml:"Token"`
	Symbol          string `toml:"Symbol"`
	Decimals        uint8  `toml:"Decimals"`
	MinLockedAmount string `toml:"MinLockedAmount"`
}

// Feed seeds the reference price oracle with an initial observation.
type Feed struct {
	Token    string `toml:"Token"`
	Price    string `toml:"Price"`
	Decimals uint8  `toml:"Decimals"`
}

type Oracle struct {
	AcceptableDelaySecs uint64 `toml:"AcceptableDelaySecs"`
	Feeds               []Feed `toml:"Feeds"`
}

// Storage selects the key-value backend. Backend is "leveldb" or "memory".
type Storage struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path"`
}

// Audit configures the audit trail store and its query API.
type Audit struct {
	ListenAddress      string  `toml:"ListenAddress"`
	DSN                string  `toml:"DSN"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	StreamBuffer       int     `toml:"StreamBuffer"`
}

type Log struct {
	Level      string `toml:"Level"`
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}
