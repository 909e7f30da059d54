// Package config manages application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Config represents the application configuration.
type Config struct {
	Normalize NormalizeConfig `yaml:"normalize"`
	Convert   ConvertConfig   `yaml:"convert"`
	Log       LogConfig       `yaml:"log"`
}

// NormalizeConfig contains normalizer limits.
type NormalizeConfig struct {
	IterationFactor int    `yaml:"iteration_factor"` // transform budget per node
	MinIterations   int    `yaml:"min_iterations"`   // lower bound of the budget
	DefaultBlock    string `yaml:"default_block"`    // wrapper for stray inline runs
}

// ConvertConfig contains HTML conversion options.
type ConvertConfig struct {
	Sanitize bool `yaml:"sanitize"`
	Minify   bool `yaml:"minify"`
}

// LogConfig contains logging options.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ErrUnknownKey is returned by Set for keys not listed in Keys.
var ErrUnknownKey = errors.New("unknown config key")

// Keys lists the settings accepted by Set.
var Keys = []string{
	"normalize.iteration_factor",
	"normalize.min_iterations",
	"normalize.default_block",
	"convert.sanitize",
	"convert.minify",
	"log.level",
	"log.format",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Normalize: NormalizeConfig{
			IterationFactor: 10,
			MinIterations:   100,
			DefaultBlock:    "paragraph",
		},
		Convert: ConvertConfig{
			Sanitize: false,
			Minify:   false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Normalize.IterationFactor <= 0 {
		return fmt.Errorf("normalize.iteration_factor must be positive: %d", c.Normalize.IterationFactor)
	}
	if c.Normalize.MinIterations <= 0 {
		return fmt.Errorf("normalize.min_iterations must be positive: %d", c.Normalize.MinIterations)
	}
	if c.Normalize.DefaultBlock == "" {
		return fmt.Errorf("normalize.default_block cannot be empty")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != LogFormatText && c.Log.Format != LogFormatJSON {
		return fmt.Errorf("invalid log format: %s (supported: %s, %s)", c.Log.Format, LogFormatText, LogFormatJSON)
	}
	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s", l.Level)
	}
	return level, nil
}

// Set updates a single setting by its dotted key. The result is validated.
func (c *Config) Set(key, value string) error {
	next := *c

	switch key {
	case "normalize.iteration_factor":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		next.Normalize.IterationFactor = n

	case "normalize.min_iterations":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		next.Normalize.MinIterations = n

	case "normalize.default_block":
		next.Normalize.DefaultBlock = value

	case "convert.sanitize", "convert.minify":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		if key == "convert.sanitize" {
			next.Convert.Sanitize = b
		} else {
			next.Convert.Minify = b
		}

	case "log.level":
		next.Log.Level = strings.ToLower(value)

	case "log.format":
		next.Log.Format = strings.ToLower(value)

	default:
		return fmt.Errorf("%w: %s (supported: %s)", ErrUnknownKey, key, strings.Join(Keys, ", "))
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
