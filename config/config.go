package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// RegistryConfig binds an asset registry address to the endpoint serving its
// capability API.
type RegistryConfig struct {
	Address  string `toml:"Address"`
	Endpoint string `toml:"Endpoint"`
}

type Config struct {
	RPCAddress     string           `toml:"RPCAddress"`
	MetricsAddress string           `toml:"MetricsAddress"`
	DataDir        string           `toml:"DataDir"`
	EventBuffer    int              `toml:"EventBuffer"`
	DevMode        bool             `toml:"DevMode"`
	Registries     []RegistryConfig `toml:"Registries"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./swapmarket-data"
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
	if cfg.Registries == nil {
		cfg.Registries = []RegistryConfig{}
	}
}

func validate(cfg *Config) error {
	for i, reg := range cfg.Registries {
		if strings.TrimSpace(reg.Address) == "" {
			return fmt.Errorf("config: registry %d missing Address", i)
		}
		if !cfg.DevMode && strings.TrimSpace(reg.Endpoint) == "" {
			return fmt.Errorf("config: registry %d missing Endpoint", i)
		}
	}
	if !cfg.DevMode && len(cfg.Registries) == 0 {
		return fmt.Errorf("config: at least one registry required outside dev mode")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{DevMode: true}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
