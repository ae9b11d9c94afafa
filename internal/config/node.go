package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"escaperoom.ai/internal/felt"
)

type AccountSpec struct {
	Address string `yaml:"address"`
	Secret  string `yaml:"secret"`
}

// NodeConfig configures the local dev node.
type NodeConfig struct {
	Listen         string        `yaml:"listen" env:"ROOM_DEVNODE_LISTEN"`
	ChainID        string        `yaml:"chain_id" env:"ROOM_CHAIN_ID"`
	ActionsAddress string        `yaml:"actions_address" env:"ROOM_ACTIONS_ADDRESS"`
	Latency        time.Duration `yaml:"latency" env:"ROOM_DEVNODE_LATENCY"`
	ReplayWindow   time.Duration `yaml:"replay_window" env:"ROOM_DEVNODE_REPLAY_WINDOW"`
	EscapeSecret   string        `yaml:"escape_secret" env:"ROOM_DEVNODE_ESCAPE_SECRET"`
	Accounts       []AccountSpec `yaml:"accounts"`
}

func LoadNode(path string) (NodeConfig, error) {
	cfg := NodeDefaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func NodeDefaults() NodeConfig {
	d := Defaults()
	return NodeConfig{
		Listen:         "127.0.0.1:5050",
		ChainID:        d.ChainID,
		ActionsAddress: d.ActionsAddress,
		ReplayWindow:   2 * time.Minute,
		EscapeSecret:   "1984",
		Accounts:       []AccountSpec{{Address: d.AccountAddress, Secret: d.AccountSecret}},
	}
}

func (c NodeConfig) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("listen is required")
	}
	if c.Latency < 0 {
		return fmt.Errorf("latency must be >= 0")
	}
	if c.ReplayWindow <= 0 {
		return fmt.Errorf("replay_window must be > 0")
	}
	if _, err := felt.PackShortString(c.EscapeSecret); err != nil || c.EscapeSecret == "" {
		return fmt.Errorf("escape_secret must be a non-empty short string")
	}
	if _, err := (Config{ActionsAddress: c.ActionsAddress}).Actions(); err != nil {
		return err
	}
	if _, err := (Config{ChainID: c.ChainID}).Chain(); err != nil {
		return err
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	for i, a := range c.Accounts {
		if _, err := felt.FromHex(a.Address); err != nil {
			return fmt.Errorf("accounts[%d] address: %w", i, err)
		}
		if strings.TrimSpace(a.Secret) == "" {
			return fmt.Errorf("accounts[%d]: empty secret", i)
		}
	}
	return nil
}
