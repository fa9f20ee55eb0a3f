package config

import (
	"fmt"
	"strings"
)

// Validate checks every field of cfg and returns an error describing all
// invalid values, or nil if the configuration is usable.
func Validate(cfg Config) error {
	var errs []string
	if _, err := cfg.CapacityBytes(); err != nil {
		errs = append(errs, "capacity: "+err.Error())
	}
	if _, err := cfg.Level(); err != nil {
		errs = append(errs, "log_level: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
