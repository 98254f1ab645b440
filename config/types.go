package config

// Genesis captures the values written once when the ledger database is
// initialised. Later boots verify the persisted administrator matches.
type Genesis struct {
	Admin                  string   `toml:"Admin"`
	AdminKeystore          string   `toml:"AdminKeystore"`
	Oracles                []string `toml:"Oracles"`
	CollateralizationRatio uint64   `toml:"CollateralizationRatio"`
	LiquidationThreshold   uint64   `toml:"LiquidationThreshold"`
	MintFeeBps             uint64   `toml:"MintFeeBps"`
	RedemptionFeeBps       uint64   `toml:"RedemptionFeeBps"`
	MaxMintLimit           uint64   `toml:"MaxMintLimit"`
	OracleMaxAgeBlocks     uint64   `toml:"OracleMaxAgeBlocks"`
	PriceCeiling           uint64   `toml:"PriceCeiling"`
}

// Auth configures bearer token authentication for the HTTP API.
type Auth struct {
	Enabled   bool   `toml:"Enabled"`
	Secret    string `toml:"Secret"`
	SecretEnv string `toml:"SecretEnv"`
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
}

// RateLimit bounds requests per authenticated caller.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute"`
	Burst             int `toml:"Burst"`
}

// Indexer configures the event history projection. DSN accepts
// sqlite://path, a bare sqlite path or postgres://...
type Indexer struct {
	Enabled      bool   `toml:"Enabled"`
	DSN          string `toml:"DSN"`
	StreamBuffer int    `toml:"StreamBuffer"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Log configures verbosity and optional rotated file output.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}
