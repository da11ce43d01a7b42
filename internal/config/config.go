// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  string  `mapstructure:"LOG_LEVEL"`
	LogFormat string  `mapstructure:"LOG_FORMAT"`
	Key       string  `mapstructure:"KEY"`
	OutDir    string  `mapstructure:"OUT"`
	PerPage   int     `mapstructure:"PER_PAGE"`
	Rate      float64 `mapstructure:"RATE"`
	BaseURL   string  `mapstructure:"BASE_URL"`
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "LOG_LEVEL",
	"log-format": "LOG_FORMAT",
	"key":        "KEY",
	"out":        "OUT",
	"per-page":   "PER_PAGE",
	"rate":       "RATE",
	"base-url":   "BASE_URL",
}

// envKeys lists the environment variables consulted for each key, in priority order.
var envKeys = map[string][]string{
	"LOG_LEVEL":  {"LOG_LEVEL"},
	"LOG_FORMAT": {"LOG_FORMAT"},
	"KEY":        {"EXTRACT_KEY", "GITHUB_TOKEN"},
	"OUT":        {"EXTRACT_OUT"},
	"PER_PAGE":   {"EXTRACT_PER_PAGE"},
	"RATE":       {"EXTRACT_RATE"},
	"BASE_URL":   {"GITHUB_BASE_URL"},
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("key", "", "API key to use (env EXTRACT_KEY or GITHUB_TOKEN)")
	fs.String("out", "", "Output path (env EXTRACT_OUT)")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.Int("per-page", 100, "Items requested per API page (1-100)")
	fs.Float64("rate", 0, "Maximum API requests per second, 0 for unlimited")
	fs.String("base-url", "", "GitHub Enterprise API base URL")
}

// LoadConfig reads configuration from flags, environment variables and an optional .env file.
// Flags explicitly set on the command line take precedence over the environment.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("PER_PAGE", 100)
	v.SetDefault("RATE", 0)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for key, envs := range envKeys {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Key == "" {
		return errors.New("KEY is a required configuration field (--key, EXTRACT_KEY or GITHUB_TOKEN)")
	}
	if c.OutDir == "" {
		return errors.New("OUT is a required configuration field (--out or EXTRACT_OUT)")
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		return fmt.Errorf("PER_PAGE must be between 1 and 100, got %d", c.PerPage)
	}
	if c.Rate < 0 {
		return fmt.Errorf("RATE must not be negative, got %g", c.Rate)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}
