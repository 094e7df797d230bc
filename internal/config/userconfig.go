package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig holds the REPL and CLI preferences read from
// ~/.seekep/config.yaml. Absent file or fields fall back to defaults.
type UserConfig struct {
	// Prompt is the REPL prompt string.
	Prompt string `yaml:"prompt"`

	// Color enables colored REPL output when stdout is a terminal.
	Color bool `yaml:"color"`

	// HistorySize bounds the in-memory REPL history.
	HistorySize int `yaml:"history_size"`

	// CacheDisabled turns the compiled-bundle cache off globally.
	CacheDisabled bool `yaml:"cache_disabled"`
}

// DefaultUserConfig returns the built-in preferences.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		Prompt:      "سكب> ",
		Color:       true,
		HistorySize: 500,
	}
}

// Dir returns the per-user SEEKEP state directory (~/.seekep).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seekep"
	}
	return filepath.Join(home, ".seekep")
}

// CachePath is the location of the compiled-bundle cache database.
func CachePath() string {
	return filepath.Join(Dir(), "cache.db")
}

// LoadUserConfig reads ~/.seekep/config.yaml, returning defaults when the
// file does not exist. A malformed file is an error; silently ignoring it
// would make preference typos invisible.
func LoadUserConfig() (UserConfig, error) {
	cfg := DefaultUserConfig()
	data, err := os.ReadFile(filepath.Join(Dir(), "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultUserConfig(), err
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultUserConfig().Prompt
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultUserConfig().HistorySize
	}
	return cfg, nil
}
