package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon's on-disk configuration.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`
	// Environment tags log lines; typical values are local, staging, prod.
	Environment string `toml:"Environment"`
	LogLevel    string `toml:"LogLevel"`
	// AdminAddress controls the risk parameters at runtime.
	AdminAddress string `toml:"AdminAddress"`
	// CustodyAddress holds all vault collateral.
	CustodyAddress string `toml:"CustodyAddress"`
	// LiquidationIncentive is an 18-decimal mantissa string; empty keeps the
	// default.
	LiquidationIncentive string `toml:"LiquidationIncentive,omitempty"`

	Markets []MarketConfig `toml:"Markets"`
	Feeds   []FeedConfig   `toml:"Feeds"`
	Pauses  Pauses         `toml:"Pauses"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tenor-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Markets == nil {
		cfg.Markets = []MarketConfig{}
	}
	if cfg.Feeds == nil {
		cfg.Feeds = []FeedConfig{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8080",
		DataDir:     "./tenor-data",
		Environment: "local",
		LogLevel:    "info",
		Markets:     []MarketConfig{},
		Feeds:       []FeedConfig{},
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
