// Package config loads client and dev node settings: YAML file, then
// ROOM_* environment variables, then command-line flags in cmd/.
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

type ObjectSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Config struct {
	NodeURL        string `yaml:"node_url" env:"ROOM_NODE_URL"`
	AccountAddress string `yaml:"account_address" env:"ROOM_ACCOUNT_ADDRESS"`
	AccountSecret  string `yaml:"account_secret" env:"ROOM_ACCOUNT_SECRET"`
	ChainID        string `yaml:"chain_id" env:"ROOM_CHAIN_ID"`
	ActionsAddress string `yaml:"actions_address" env:"ROOM_ACTIONS_ADDRESS"`

	SyncInterval    time.Duration `yaml:"sync_interval" env:"ROOM_SYNC_INTERVAL"`
	FrameRateHz     int           `yaml:"frame_rate_hz" env:"ROOM_FRAME_RATE_HZ"`
	ChannelCapacity int           `yaml:"channel_capacity" env:"ROOM_CHANNEL_CAPACITY"`
	SettleDelay     time.Duration `yaml:"settle_delay" env:"ROOM_SETTLE_DELAY"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"ROOM_REQUEST_TIMEOUT"`
	InitialTurns    uint64        `yaml:"initial_turns" env:"ROOM_INITIAL_TURNS"`

	DataDir   string `yaml:"data_dir" env:"ROOM_DATA_DIR"`
	DisableDB bool   `yaml:"disable_db" env:"ROOM_DISABLE_DB"`

	Objects []ObjectSpec `yaml:"objects,omitempty"`
}

// Load reads path (optional) over the defaults and applies the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
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
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Defaults target a local dev node with its prefunded account 0.
func Defaults() Config {
	return Config{
		NodeURL:         "ws://127.0.0.1:5050/v1/ws",
		AccountAddress:  "0x517ececd29116499f4a1b64b094da79ba08dfd54a3edaa316134c41f8160973",
		AccountSecret:   "0x1800000000300000180000000000030000000000003006001800006600",
		ChainID:         "KATANA",
		ActionsAddress:  "0x47c92218dfdaac465ad724f028f0f075b1c05c9ff9555d0e426c025e45c035",
		SyncInterval:    time.Second,
		FrameRateHz:     60,
		ChannelCapacity: 32,
		SettleDelay:     250 * time.Millisecond,
		RequestTimeout:  10 * time.Second,
		InitialTurns:    10,
		DataDir:         "./data",
	}
}

func (c *Config) Normalize() {
	c.NodeURL = strings.TrimSpace(c.NodeURL)
	c.AccountAddress = strings.TrimSpace(c.AccountAddress)
	c.AccountSecret = strings.TrimSpace(c.AccountSecret)
	c.ChainID = strings.TrimSpace(c.ChainID)
	c.ActionsAddress = strings.TrimSpace(c.ActionsAddress)
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.FrameRateHz <= 0 {
		c.FrameRateHz = 60
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = 32
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	for i := range c.Objects {
		c.Objects[i].Name = strings.TrimSpace(c.Objects[i].Name)
	}
}

func (c Config) Validate() error {
	if c.NodeURL == "" {
		return fmt.Errorf("node_url is required")
	}
	if !strings.HasPrefix(c.NodeURL, "ws://") && !strings.HasPrefix(c.NodeURL, "wss://") {
		return fmt.Errorf("node_url must be ws:// or wss://")
	}
	if _, err := c.Account(); err != nil {
		return err
	}
	if c.AccountSecret == "" {
		return fmt.Errorf("account_secret is required")
	}
	if _, err := c.Chain(); err != nil {
		return err
	}
	if _, err := c.Actions(); err != nil {
		return err
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be > 0")
	}
	if c.FrameRateHz > 1000 {
		return fmt.Errorf("frame_rate_hz must be <= 1000")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}
	if c.InitialTurns == 0 {
		return fmt.Errorf("initial_turns must be > 0")
	}
	if !c.DisableDB && c.DataDir == "" {
		return fmt.Errorf("data_dir is required unless disable_db is set")
	}
	for i, o := range c.Objects {
		if o.Name == "" {
			return fmt.Errorf("objects[%d]: empty name", i)
		}
		if _, err := felt.PackShortString(o.Name); err != nil {
			return fmt.Errorf("objects[%d] name: %w", i, err)
		}
		if _, err := felt.PackShortString(o.Description); err != nil {
			return fmt.Errorf("objects[%d] description: %w", i, err)
		}
	}
	return nil
}

func (c Config) Account() (felt.Felt, error) {
	f, err := felt.FromHex(c.AccountAddress)
	if err != nil {
		return felt.Felt{}, fmt.Errorf("account_address: %w", err)
	}
	if f.IsZero() {
		return felt.Felt{}, fmt.Errorf("account_address must be non-zero")
	}
	return f, nil
}

func (c Config) Actions() (felt.Felt, error) {
	f, err := felt.FromHex(c.ActionsAddress)
	if err != nil {
		return felt.Felt{}, fmt.Errorf("actions_address: %w", err)
	}
	if f.IsZero() {
		return felt.Felt{}, fmt.Errorf("actions_address must be non-zero")
	}
	return f, nil
}

// Chain accepts a hex felt or a short string such as "KATANA".
func (c Config) Chain() (felt.Felt, error) {
	if strings.HasPrefix(c.ChainID, "0x") || strings.HasPrefix(c.ChainID, "0X") {
		f, err := felt.FromHex(c.ChainID)
		if err != nil {
			return felt.Felt{}, fmt.Errorf("chain_id: %w", err)
		}
		return f, nil
	}
	if c.ChainID == "" {
		return felt.Felt{}, fmt.Errorf("chain_id is required")
	}
	f, err := felt.PackShortString(c.ChainID)
	if err != nil {
		return felt.Felt{}, fmt.Errorf("chain_id: %w", err)
	}
	return f, nil
}
