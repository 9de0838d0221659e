// Package config loads and persists lunardrift configuration, including the
// per-server MCP entries and the OAuth credential store.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigPath returns the default configuration file path: ~/.lunardrift/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// DataDir returns the lunardrift data directory: ~/.lunardrift.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lunardrift"
	}
	return filepath.Join(home, ".lunardrift")
}

// ServersPath returns the optional YAML server-list path: ~/.lunardrift/servers.yaml.
func ServersPath() string {
	return filepath.Join(DataDir(), "servers.yaml")
}

// Load reads and parses the config file at path.
// If path is empty, ConfigPath() is used. A missing or unparseable file
// falls back to DefaultConfig(). The YAML servers file, when present, is
// merged over the mcpServers block afterwards.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			slog.Warn("Failed to parse config, using defaults", "path", path, "err", err)
			cfg = DefaultConfig()
		}
	}

	if err := mergeServersFile(&cfg, ServersPath()); err != nil {
		slog.Warn("Failed to load servers file", "path", ServersPath(), "err", err)
	}
	return &cfg, nil
}

// mergeServersFile overlays MCP server entries from a YAML file onto cfg.
// Entries with the same name replace the config.json ones.
func mergeServersFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var extra struct {
		MCPServers map[string]MCPServerConfig `yaml:"mcpServers"`
	}
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]MCPServerConfig{}
	}
	for name, sc := range extra.MCPServers {
		cfg.MCPServers[name] = sc
	}
	return nil
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
