// Package config handles kvs configuration loading and defaults.
//
// Settings are resolved in increasing priority: built-in defaults, an
// optional config file (YAML or TOML, chosen by extension), environment
// variables, and finally command-line flags applied by the caller.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config represents the contents of a kvs config file.
type Config struct {
	// Path is the data store file. Empty selects the default location.
	Path string `yaml:"path" toml:"path"`

	// Capacity is the maximum encoded size of the store, as a byte count
	// or a human size such as "512KiB" or "1GiB".
	Capacity string `yaml:"capacity" toml:"capacity"`

	LogLevel string `yaml:"log_level" toml:"log_level"`
	JSON     bool   `yaml:"json" toml:"json"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Capacity: "1GiB",
		LogLevel: "warn",
	}
}

// Load reads the config file at path and applies defaults for missing
// fields. Files ending in .toml are parsed as TOML, anything else as YAML.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing TOML config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Resolve builds the configuration from defaults, the config file and the
// environment. configFile may be empty, in which case EnvConfig is consulted.
func Resolve(configFile string) (Config, error) {
	if configFile == "" {
		configFile = os.Getenv(EnvConfig)
	}

	cfg := Default()
	if configFile != "" {
		loaded, err := Load(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	ApplyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CapacityBytes returns the parsed Capacity.
func (c Config) CapacityBytes() (int64, error) {
	return ParseCapacity(c.Capacity)
}

// Level returns the parsed LogLevel.
func (c Config) Level() (slog.Level, error) {
	return ParseLevel(c.LogLevel)
}

// ParseCapacity parses a byte count such as "10", "10B", "512KiB" or "1GiB".
func ParseCapacity(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid capacity %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid capacity %q: must be positive", s)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid capacity %q: too large", s)
	}
	return int64(n), nil
}

// ParseLevel parses a log level name: debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
