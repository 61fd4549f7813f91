package config

import (
	"fmt"
	"math/big"
	"strings"

	"rewardvault/crypto"
	"rewardvault/storage"
)

// ParseAmount parses a non-negative base-10 integer amount.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}

// Validate checks every field that cannot be corrected by a default.
func (c *Config) Validate() error {
	switch storage.Backend(strings.ToLower(c.Storage)) {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage)
	}
	if strings.TrimSpace(c.DataDir) == "" && !strings.EqualFold(c.Storage, string(storage.BackendMemory)) {
		return fmt.Errorf("data_dir: required for %s storage", c.Storage)
	}
	if strings.TrimSpace(c.Donation.NativeDenom) == "" {
		return fmt.Errorf("donation: native denomination required")
	}
	threshold, err := ParseAmount(c.Donation.MinThreshold)
	if err != nil {
		return fmt.Errorf("donation: min threshold: %w", err)
	}
	if threshold.Sign() == 0 {
		return fmt.Errorf("donation: min threshold must be positive")
	}
	if c.Donation.TotalUnits == 0 {
		return fmt.Errorf("donation: total units must be positive")
	}
	if _, err := crypto.ParseDigestAlgorithm(c.Donation.Digest); err != nil {
		return fmt.Errorf("donation: %w", err)
	}
	if _, err := ParseAmount(c.Registry.IssueCost); err != nil {
		return fmt.Errorf("registry: issue cost: %w", err)
	}
	for name, addr := range map[string]string{"custody": c.Custody, "registry vault": c.Registry.Vault} {
		if strings.TrimSpace(addr) == "" {
			continue
		}
		if _, err := crypto.ParseAddress(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Gateway.RatePerSecond < 0 || c.Gateway.Burst < 0 {
		return fmt.Errorf("gateway: rate limits must not be negative")
	}
	if c.Gateway.RatePerSecond > 0 && c.Gateway.Burst == 0 {
		return fmt.Errorf("gateway: burst must be positive when rate limiting is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio must be within [0, 1]")
	}
	return nil
}
