package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays PLATZIGRAM_DB_* variables onto config. Unset variables
// keep the current values.
func parseEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
