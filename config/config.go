package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"nftmarket/native/market"
)

// Config carries the node-level settings of the marketplace service.
type Config struct {
	RPCAddress         string   `toml:"RPCAddress"`
	MetricsAddress     string   `toml:"MetricsAddress"`
	DataDir            string   `toml:"DataDir"`
	Backend            string   `toml:"Backend"`
	MinAuctionDuration uint64   `toml:"MinAuctionDuration"`
	CommissionPercent  uint32   `toml:"CommissionPercent"`
	CommissionWallet   string   `toml:"CommissionWallet"`
	MarketAddress      string   `toml:"MarketAddress"`
	OperatorAddresses  []string `toml:"OperatorAddresses"`
}

// Supported storage backends.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Load loads the configuration from the given path. A missing file is
// populated with defaults and persisted so the first run leaves an editable
// config behind.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = BackendLevelDB
	}
	if cfg.MinAuctionDuration == 0 {
		cfg.MinAuctionDuration = market.DefaultMinAuctionDuration
	}
	if cfg.OperatorAddresses == nil {
		cfg.OperatorAddresses = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("config: unsupported backend %q", c.Backend)
	}
	if c.CommissionPercent > market.MaxCommissionPercent {
		return fmt.Errorf("config: commission percent %d exceeds maximum %d", c.CommissionPercent, market.MaxCommissionPercent)
	}
	if strings.TrimSpace(c.CommissionWallet) != "" {
		if _, err := ParseAddress(c.CommissionWallet); err != nil {
			return fmt.Errorf("config: commission wallet: %w", err)
		}
	}
	if strings.TrimSpace(c.MarketAddress) != "" {
		if _, err := ParseAddress(c.MarketAddress); err != nil {
			return fmt.Errorf("config: market address: %w", err)
		}
	}
	for _, operator := range c.OperatorAddresses {
		if _, err := ParseAddress(operator); err != nil {
			return fmt.Errorf("config: operator address %q: %w", operator, err)
		}
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:         ":8080",
		MetricsAddress:     ":9100",
		DataDir:            "./market-data",
		Backend:            BackendLevelDB,
		MinAuctionDuration: market.DefaultMinAuctionDuration,
		CommissionPercent:  market.DefaultCommissionPercent,
		OperatorAddresses:  []string{},
	}

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
