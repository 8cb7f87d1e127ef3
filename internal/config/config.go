// Package config loads the host application's console settings from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the YAML-backed application configuration.
type Config struct {
	Prompt         string `yaml:"prompt"`
	Welcome        string `yaml:"welcome"`
	Listen         string `yaml:"listen"`
	MaxLineLen     int    `yaml:"max_line_len"`
	MaxHistory     int    `yaml:"max_history"`
	LogDepth       int    `yaml:"log_depth"`
	LogLevel       string `yaml:"log_level"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Prompt:         "console> ",
		Welcome:        "Welcome to the device console.\r\nPress tab for available commands.\r\n",
		Listen:         ":2323",
		MaxLineLen:     256,
		MaxHistory:     100,
		LogDepth:       16,
		LogLevel:       "info",
		PollIntervalMS: 5,
	}
}

// Load reads path and overlays it on Default, so a partial file only
// overrides what it names.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Poll returns the scheduler sweep interval.
func (c *Config) Poll() time.Duration {
	if c.PollIntervalMS <= 0 {
		return 5 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ZapLevel parses the configured log level.
func (c *Config) ZapLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}
