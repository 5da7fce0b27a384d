package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk CLI configuration, read from
// ~/.config/weft/config.toml (or $XDG_CONFIG_HOME/weft/config.toml).
type Config struct {
	Encode EncodeConfig `toml:"encode"`
	Graph  GraphConfig  `toml:"graph"`
	Tail   TailConfig   `toml:"tail"`
}

// EncodeConfig holds defaults for the encode and decode commands.
type EncodeConfig struct {
	// Pretty indents decoded JSON output.
	Pretty bool `toml:"pretty"`
}

// GraphConfig holds defaults for the graph command.
type GraphConfig struct {
	// Format is the default output format: dot, svg, png or pdf.
	Format string `toml:"format"`
	// Detailed includes literal values in node labels.
	Detailed bool `toml:"detailed"`
}

// TailConfig holds defaults for the tail command.
type TailConfig struct {
	// Live enables the interactive channel monitor by default.
	Live bool `toml:"live"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{Format: "dot"},
	}
}

// LoadConfig reads the user's config file, applying defaults for anything
// unset. A missing file is not an error.
func LoadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Graph.Format == "" {
		cfg.Graph.Format = "dot"
	}
	return cfg, nil
}

// configPath returns the config file location using the XDG convention.
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
