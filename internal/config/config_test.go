package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"escaperoom.ai/internal/felt"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "room.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SettleDelay != 250*time.Millisecond || cfg.InitialTurns != 10 || cfg.FrameRateHz != 60 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	chain, err := cfg.Chain()
	if err != nil || chain != felt.MustHex("0x4b4154414e41") {
		t.Fatalf("chain=%v err=%v", chain, err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
node_url: ws://node.local:7000/v1/ws
sync_interval: 3s
settle_delay: 10ms
initial_turns: 4
objects:
  - name: " Lamp "
    description: A flickering lamp
`)
	t.Setenv("ROOM_SYNC_INTERVAL", "7s")
	t.Setenv("ROOM_DISABLE_DB", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeURL != "ws://node.local:7000/v1/ws" {
		t.Fatalf("node_url=%q", cfg.NodeURL)
	}
	if cfg.SyncInterval != 7*time.Second {
		t.Fatalf("env did not override sync_interval: %v", cfg.SyncInterval)
	}
	if cfg.SettleDelay != 10*time.Millisecond || cfg.InitialTurns != 4 || !cfg.DisableDB {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Objects) != 1 || cfg.Objects[0].Name != "Lamp" {
		t.Fatalf("objects=%+v", cfg.Objects)
	}
	// Untouched fields keep their defaults.
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("request_timeout=%v", cfg.RequestTimeout)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http url", func(c *Config) { c.NodeURL = "http://127.0.0.1:5050" }},
		{"bad account", func(c *Config) { c.AccountAddress = "0xzz" }},
		{"zero actions", func(c *Config) { c.ActionsAddress = "0x0" }},
		{"no secret", func(c *Config) { c.AccountSecret = "" }},
		{"long chain id", func(c *Config) { c.ChainID = "THIS_CHAIN_ID_IS_LONGER_THAN_31_CHARS" }},
		{"zero sync", func(c *Config) { c.SyncInterval = 0 }},
		{"zero turns", func(c *Config) { c.InitialTurns = 0 }},
		{"no data dir", func(c *Config) { c.DataDir = "" }},
		{"long description", func(c *Config) {
			c.Objects = []ObjectSpec{{Name: "Desk", Description: "a description far too long for a felt"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_IgnoresWorldAddress(t *testing.T) {
	// Records are addressed by model and keys alone; a world address in an
	// older room.yaml is not parsed or validated.
	path := writeFile(t, "world_address: not-a-felt\n")
	t.Setenv("ROOM_WORLD_ADDRESS", "0xzz")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ActionsAddress != Defaults().ActionsAddress {
		t.Fatalf("actions_address=%q", cfg.ActionsAddress)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "sync_interval: [")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestLoadNode(t *testing.T) {
	t.Setenv("ROOM_DEVNODE_LATENCY", "15ms")
	cfg, err := LoadNode("")
	if err != nil {
		t.Fatalf("LoadNode: %v", err)
	}
	if cfg.Latency != 15*time.Millisecond || cfg.EscapeSecret != "1984" || len(cfg.Accounts) != 1 {
		t.Fatalf("unexpected node config %+v", cfg)
	}

	bad := NodeDefaults()
	bad.Accounts = nil
	if err := bad.Validate(); err == nil {
		t.Fatalf("node config without accounts accepted")
	}
}
