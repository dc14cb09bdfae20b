// Package config loads and manages cachet configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CACHET_MODEL, CACHET_DATA_DIR)
// 2. Config file path specified via --config flag
// 3. ~/.config/cachet/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model aliases accepted in config, flags and the /model command.
var modelAliases = map[string]string{
	"sonnet": "claude-sonnet-4-20250514",
	"opus":   "claude-opus-4-20250514",
}

// Config is the complete configuration structure for cachet.
type Config struct {
	// APIKey for the Anthropic API. Usually set via ANTHROPIC_API_KEY.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier or alias ("sonnet", "opus").
	Model string `yaml:"model"`

	// MaxTokens caps the assistant reply length per turn.
	MaxTokens int `yaml:"max_tokens"`

	// MaxFileSizeMB caps uploads; files above this are rejected locally.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// MaxSearchesPerTurn caps server web searches in a single turn.
	MaxSearchesPerTurn int `yaml:"max_searches_per_turn"`

	// MaxSavedConversations bounds the archive retention count.
	MaxSavedConversations int `yaml:"max_saved_conversations"`

	// DataDir holds conversations and the file registry database.
	// Empty = ~/.local/share/cachet.
	DataDir string `yaml:"data_dir"`

	// EventLog path for JSONL session event logging. Empty = no logging.
	EventLog string `yaml:"event_log"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:                 "sonnet",
		MaxTokens:             8192,
		MaxFileSizeMB:         32,
		MaxSearchesPerTurn:    5,
		MaxSavedConversations: 10,
	}
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "cachet", "config.yaml")
		}
	}

	// Missing file is fine; defaults apply.
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".local", "share", "cachet")
	}

	return cfg, nil
}

// Validate checks that the configuration is usable for API calls.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("no API key configured (set ANTHROPIC_API_KEY or api_key in config)")
	}
	if ResolveModel(c.Model) == "" {
		return fmt.Errorf("no model configured")
	}
	return nil
}

// ResolveModel expands a model alias to its full identifier. Unknown
// names pass through unchanged so full model IDs work directly.
func ResolveModel(name string) string {
	if full, ok := modelAliases[strings.ToLower(name)]; ok {
		return full
	}
	return name
}

// DisplayName compresses a full model identifier back to its alias for
// status lines, falling back to the raw identifier.
func DisplayName(model string) string {
	for alias, full := range modelAliases {
		if full == model {
			return alias
		}
	}
	return model
}

// KnownAliases lists the accepted model aliases, for help output.
func KnownAliases() []string {
	return []string{"sonnet", "opus"}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("CACHET_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("CACHET_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}
