package config

import (
	"fmt"
	"strings"

	"satvault/crypto"
)

// Validate checks the configuration for values the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir required")
	}
	if c.TokenSymbol == "" {
		return fmt.Errorf("TokenSymbol required")
	}
	if c.BlockIntervalMillis == 0 {
		return fmt.Errorf("BlockIntervalMillis must be positive")
	}
	if err := c.Genesis.Validate(); err != nil {
		return err
	}
	if c.Auth.Enabled && c.Auth.AuthSecret() == "" {
		return fmt.Errorf("auth: secret required when auth is enabled")
	}
	if !c.Auth.Enabled && !strings.EqualFold(c.Environment, "dev") {
		return fmt.Errorf("auth: may only be disabled in the dev environment")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}

// Validate checks the administrator, oracle addresses and risk parameters.
func (g Genesis) Validate() error {
	if g.Admin == "" {
		return fmt.Errorf("genesis: Admin required")
	}
	admin, err := crypto.DecodeAddress(g.Admin)
	if err != nil {
		return fmt.Errorf("genesis: Admin: %w", err)
	}
	for _, raw := range g.Oracles {
		oracle, err := crypto.DecodeAddress(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("genesis: oracle %q: %w", raw, err)
		}
		if oracle.Equal(admin) {
			return fmt.Errorf("genesis: administrator cannot be an oracle")
		}
	}
	if err := g.RiskParameters().Validate(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	return nil
}
