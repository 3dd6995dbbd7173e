// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Dashboard DashboardConfig `toml:"dashboard"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
}

// DashboardConfig maps the initial chart parameters.
type DashboardConfig struct {
	Average           *string  `toml:"average"`
	Window            *int     `toml:"window"`
	Threshold         *float64 `toml:"threshold"`
	ShowBounds        *bool    `toml:"show-bounds"`
	HighlightOutliers *bool    `toml:"highlight-outliers"`
	Watch             *bool    `toml:"watch"`
}

// StoreConfig maps the aggregated store location.
type StoreConfig struct {
	Path *string `toml:"path"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// StorePath returns the configured store path or the XDG default.
func (c FileConfig) StorePath() string {
	if c.Store.Path != nil && *c.Store.Path != "" {
		return *c.Store.Path
	}
	return DefaultStorePath()
}

// LogLevel returns the configured log level or "info".
func (c FileConfig) LogLevel() string {
	if c.Log.Level != nil && *c.Log.Level != "" {
		return *c.Log.Level
	}
	return "info"
}

// LogFile returns the configured dashboard log file or the XDG default.
func (c FileConfig) LogFile() string {
	if c.Log.File != nil && *c.Log.File != "" {
		return *c.Log.File
	}
	return DefaultLogPath()
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
