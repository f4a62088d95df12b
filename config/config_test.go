package config

import (
	"os"
	"path/filepath"
	"testing"

	"nftmarket/native/market"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendLevelDB {
		t.Fatalf("default backend: got %q", cfg.Backend)
	}
	if cfg.MinAuctionDuration != market.DefaultMinAuctionDuration {
		t.Fatalf("default min duration: got %d", cfg.MinAuctionDuration)
	}
	if cfg.CommissionPercent != market.DefaultCommissionPercent {
		t.Fatalf("default commission percent: got %d", cfg.CommissionPercent)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not persisted: %v", err)
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = ":9090"
Backend = "memory"
CommissionPercent = 10
CommissionWallet = "0xcccccccccccccccccccccccccccccccccccccccc"
OperatorAddresses = ["0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCAddress != ":9090" || cfg.Backend != BackendMemory {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MinAuctionDuration != market.DefaultMinAuctionDuration {
		t.Fatalf("zero duration should fall back to the default, got %d", cfg.MinAuctionDuration)
	}
	if len(cfg.OperatorAddresses) != 1 {
		t.Fatalf("unexpected operators: %v", cfg.OperatorAddresses)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad backend":    `Backend = "sqlite"`,
		"high percent":   `CommissionPercent = 90`,
		"bad wallet":     `CommissionWallet = "nothex"`,
		"short operator": `OperatorAddresses = ["0x0102"]`,
	}
	for name, contents := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("%s: write config: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseAddress(t *testing.T) {
	want := [20]byte{0x01, 0x02}
	got, err := ParseAddress("0x0102000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if got != want {
		t.Fatalf("ParseAddress: got %x", got)
	}

	unprefixed, err := ParseAddress("0102000000000000000000000000000000000000")
	if err != nil || unprefixed != want {
		t.Fatalf("unprefixed form must parse identically: %v", err)
	}

	if _, err := ParseAddress("0x01"); err == nil {
		t.Fatalf("short address must be rejected")
	}
	if _, err := ParseAddress("zz"); err == nil {
		t.Fatalf("non-hex address must be rejected")
	}
}
