package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"satvault/crypto"
	"satvault/native/params"
)

type Config struct {
	ListenAddress       string `toml:"ListenAddress"`
	DataDir             string `toml:"DataDir"`
	Environment         string `toml:"Environment"`
	TokenSymbol         string `toml:"TokenSymbol"`
	BlockIntervalMillis uint64 `toml:"BlockIntervalMillis"`

	Genesis   Genesis   `toml:"genesis"`
	Auth      Auth      `toml:"auth"`
	RateLimit RateLimit `toml:"rate_limit"`
	Indexer   Indexer   `toml:"indexer"`
	Telemetry Telemetry `toml:"telemetry"`
	Log       Log       `toml:"log"`
}

// Default returns a configuration populated with the deployment defaults.
// The administrator is left empty.
func Default() *Config {
	risk := params.DefaultRiskParameters()
	return &Config{
		ListenAddress:       ":8080",
		DataDir:             "./satvault-data",
		Environment:         "dev",
		TokenSymbol:         "VUSD",
		BlockIntervalMillis: 1000,
		Genesis: Genesis{
			Oracles:                []string{},
			CollateralizationRatio: risk.CollateralizationRatio,
			LiquidationThreshold:   risk.LiquidationThreshold,
			MintFeeBps:             risk.MintFeeBps,
			RedemptionFeeBps:       risk.RedemptionFeeBps,
			MaxMintLimit:           risk.MaxMintLimit,
			OracleMaxAgeBlocks:     risk.OracleMaxAgeBlocks,
			PriceCeiling:           risk.PriceCeiling,
		},
		Auth: Auth{
			Enabled:   true,
			SecretEnv: "SATVAULT_AUTH_SECRET",
			Issuer:    "satvault",
			Audience:  "satvault-api",
		},
		RateLimit: RateLimit{RequestsPerMinute: 600, Burst: 60},
		Indexer:   Indexer{Enabled: true, StreamBuffer: 1024},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true, SampleRatio: 1},
		Log:       Log{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
	}
}

// PassphraseSource resolves the administrator keystore passphrase on demand.
type PassphraseSource func() (string, error)

type loadOptions struct {
	passphrase PassphraseSource
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithKeystorePassphraseSource supplies the passphrase used to create or read
// the administrator keystore. It is only consulted when a keystore is touched.
func WithKeystorePassphraseSource(source PassphraseSource) LoadOption {
	return func(o *loadOptions) {
		o.passphrase = source
	}
}

// WithKeystorePassphrase is WithKeystorePassphraseSource for a fixed value.
func WithKeystorePassphrase(passphrase string) LoadOption {
	return WithKeystorePassphraseSource(func() (string, error) { return passphrase, nil })
}

func (o loadOptions) resolvePassphrase() (string, error) {
	if o.passphrase == nil {
		return "", nil
	}
	return o.passphrase()
}

// Load loads the configuration from the given path. A missing file is created
// with defaults and a freshly generated administrator keystore.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		passphrase, err := options.resolvePassphrase()
		if err != nil {
			return nil, err
		}
		return createDefault(path, passphrase)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := ensureAdmin(path, options, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.TokenSymbol = strings.ToUpper(strings.TrimSpace(c.TokenSymbol))
	c.Genesis.Admin = strings.TrimSpace(c.Genesis.Admin)
	if c.Genesis.Oracles == nil {
		c.Genesis.Oracles = []string{}
	}
	if c.Indexer.Enabled && strings.TrimSpace(c.Indexer.DSN) == "" {
		c.Indexer.DSN = "sqlite://" + filepath.Join(c.DataDir, "history.db")
	}
	if c.Indexer.StreamBuffer <= 0 {
		c.Indexer.StreamBuffer = 1024
	}
}

// ensureAdmin resolves Genesis.Admin from the administrator keystore when only
// the keystore path is configured.
func ensureAdmin(configPath string, options loadOptions, cfg *Config) error {
	if cfg.Genesis.Admin != "" || cfg.Genesis.AdminKeystore == "" {
		return nil
	}
	passphrase, err := options.resolvePassphrase()
	if err != nil {
		return err
	}
	keystorePath := cfg.Genesis.AdminKeystore
	if !filepath.IsAbs(keystorePath) {
		keystorePath = filepath.Join(filepath.Dir(configPath), keystorePath)
	}
	addr, err := crypto.KeystoreAddress(keystorePath, passphrase)
	if err != nil {
		return fmt.Errorf("load admin keystore: %w", err)
	}
	cfg.Genesis.Admin = addr.String()
	return nil
}

// AdminKeystorePath resolves the administrator keystore relative to the
// configuration file. It returns "" when none is configured.
func (c *Config) AdminKeystorePath(configPath string) string {
	keystorePath := strings.TrimSpace(c.Genesis.AdminKeystore)
	if keystorePath == "" || filepath.IsAbs(keystorePath) {
		return keystorePath
	}
	return filepath.Join(filepath.Dir(configPath), keystorePath)
}

// RiskParameters converts the genesis section into ledger parameters.
func (g Genesis) RiskParameters() params.RiskParameters {
	return params.RiskParameters{
		CollateralizationRatio: g.CollateralizationRatio,
		LiquidationThreshold:   g.LiquidationThreshold,
		MintFeeBps:             g.MintFeeBps,
		RedemptionFeeBps:       g.RedemptionFeeBps,
		MaxMintLimit:           g.MaxMintLimit,
		OracleMaxAgeBlocks:     g.OracleMaxAgeBlocks,
		PriceCeiling:           g.PriceCeiling,
	}
}

// AuthSecret returns the configured HMAC secret, preferring the environment
// variable named by SecretEnv.
func (a Auth) AuthSecret() string {
	if env := strings.TrimSpace(a.SecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(a.Secret)
}

// createDefault creates and saves a default configuration file together with
// an administrator keystore next to it.
func createDefault(path, passphrase string) (*Config, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, fmt.Errorf("config file %s missing and no passphrase supplied to create an administrator keystore", path)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Genesis.Admin = key.PubKey().Address().String()
	cfg.Genesis.AdminKeystore = filepath.Base(keystorePath)
	cfg.normalize()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
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

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "admin.keystore")
}

// Addresses decodes the administrator and genesis oracles.
func (g Genesis) Addresses() (crypto.Address, []crypto.Address, error) {
	admin, err := crypto.DecodeAddress(strings.TrimSpace(g.Admin))
	if err != nil {
		return crypto.Address{}, nil, fmt.Errorf("genesis: Admin: %w", err)
	}
	oracles := make([]crypto.Address, 0, len(g.Oracles))
	for _, raw := range g.Oracles {
		oracle, err := crypto.DecodeAddress(strings.TrimSpace(raw))
		if err != nil {
			return crypto.Address{}, nil, fmt.Errorf("genesis: oracle %q: %w", raw, err)
		}
		oracles = append(oracles, oracle)
	}
	return admin, oracles, nil
}
