package config

import (
	"os"
	"testing"

	"github.com/relaynet/txrelay/internal/models"
)

func TestLoad_AppliesEnvOverridesOnTopOfFileDefaults(t *testing.T) {
	t.Setenv("PK", "abc123")
	t.Setenv("DATABASE_URL", "postgres://localhost/txrelay")
	t.Setenv("CHAIN_ALLOWLIST", "anvil:31337:http://localhost:8545")
	t.Setenv("PORT", "9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected PORT override, got %s", cfg.Server.Addr)
	}
	if cfg.Relay.PrivateKeyHex != "abc123" {
		t.Fatalf("expected PK override, got %s", cfg.Relay.PrivateKeyHex)
	}
	if len(cfg.Relay.Chains) != 1 || cfg.Relay.Chains[0].Chain != models.ChainAnvilHardhat {
		t.Fatalf("expected one anvil chain from allowlist, got %+v", cfg.Relay.Chains)
	}
	if cfg.Relay.Chains[0].RPCURL != "http://localhost:8545" {
		t.Fatalf("expected rpc url from allowlist entry, got %s", cfg.Relay.Chains[0].RPCURL)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("PK", "abc123")
	t.Setenv("DATABASE_URL", "postgres://localhost/txrelay")
	t.Setenv("CHAIN_ALLOWLIST", "anvil:31337:http://localhost:8545")

	if _, err := os.Stat("/tmp/definitely-does-not-exist-txrelay-config.yaml"); err == nil {
		t.Fatalf("test fixture path unexpectedly exists")
	}

	cfg, err := Load("/tmp/definitely-does-not-exist-txrelay-config.yaml")
	if err != nil {
		t.Fatalf("expected missing file to fall back to defaults, got error: %v", err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Fatalf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestValidate_RequiresPrivateKey(t *testing.T) {
	cfg := defaults()
	cfg.Database.URL = "postgres://localhost/txrelay"
	cfg.Relay.Chains = []ChainConfig{{Name: "anvil", Chain: models.ChainAnvilHardhat, RPCURL: "http://localhost:8545"}}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing PK")
	}
}

func TestValidate_RequiresRPCURLPerChain(t *testing.T) {
	cfg := defaults()
	cfg.Relay.PrivateKeyHex = "abc123"
	cfg.Database.URL = "postgres://localhost/txrelay"
	cfg.Relay.Chains = []ChainConfig{{Name: "anvil", Chain: models.ChainAnvilHardhat}}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing rpc url")
	}
}

func TestParseAllowlist_SkipsMalformedEntries(t *testing.T) {
	chains := parseAllowlist("anvil:31337:http://localhost:8545,malformed,sepolia:11155111")
	if len(chains) != 2 {
		t.Fatalf("expected 2 valid entries, got %d: %+v", len(chains), chains)
	}
	if chains[1].RPCURL != "" {
		t.Fatalf("expected third field to be optional, got %q", chains[1].RPCURL)
	}
}
