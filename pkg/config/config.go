// Package config handles the paflow workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the workspace configuration (paflow.yaml).
type Config struct {
	// Output settings
	Output string `yaml:"output"` // Directory packages are written to
	XORKey string `yaml:"xorKey"` // Comma separated key for encoded renders

	// Connections
	Connections     map[string]string `yaml:"connections"`     // Connector name -> existing connection name
	ConnectionsFile string            `yaml:"connectionsFile"` // Saved ListConnections response
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if cfg.ConnectionsFile != "" && !filepath.IsAbs(cfg.ConnectionsFile) {
		cfg.ConnectionsFile = filepath.Join(filepath.Dir(path), cfg.ConnectionsFile)
	}
	return &cfg, nil
}

// LoadFromDir looks for paflow.yaml or paflow.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try paflow.yaml first
	configPath := filepath.Join(dir, "paflow.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try paflow.yml
	configPath = filepath.Join(dir, "paflow.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}

// ConnectionName returns the configured connection name for a connector.
func (c *Config) ConnectionName(connector string) string {
	return c.Connections[connector]
}
