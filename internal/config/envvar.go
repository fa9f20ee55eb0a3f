package config

import "os"

// Environment variable names for kvs configuration.
const (
	EnvConfig   = "KVS_CONFIG"    // Path to a config file
	EnvPath     = "KVS_PATH"      // Data store file
	EnvCapacity = "KVS_CAPACITY"  // Capacity, e.g. "64MiB"
	EnvJSON     = "KVS_JSON"      // Enable JSON output ("1" or "true")
	EnvLogLevel = "KVS_LOG_LEVEL" // debug, info, warn or error
)

// ApplyEnvOverrides overrides cfg with any KVS_* variables that are set.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPath); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv(EnvCapacity); v != "" {
		cfg.Capacity = v
	}
	if v := os.Getenv(EnvJSON); v == "1" || v == "true" {
		cfg.JSON = true
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}
