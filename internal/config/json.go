package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/platzigram/platzigram-db/internal/flagx"
	"github.com/platzigram/platzigram-db/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "250ms" and integer nanoseconds are accepted.
// Pointers distinguish an absent key from a zero value.
type JsonConfig struct {
	Host                *string         `json:"host"`
	Port                *int            `json:"port"`
	DatabaseName        *string         `json:"database_name"`
	User                *string         `json:"user"`
	Password            *string         `json:"password"`
	SSLMode             *string         `json:"sslmode"`
	MaintenanceDatabase *string         `json:"maintenance_database"`
	SetupSchema         *bool           `json:"setup_schema"`
	IndexWaitInterval   *timex.Duration `json:"index_wait_interval"`
	IndexWaitTimeout    *timex.Duration `json:"index_wait_timeout"`
	LogLevel            *string         `json:"log_level"`
	Hasher              *string         `json:"hasher"`
}

// parseJson overlays the file named by -c/-config in args onto config.
// Keys missing from the file leave the current values untouched.
func parseJson(config *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)

	// nothing to load
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setIf(&config.Host, c.Host)
	setIf(&config.Port, c.Port)
	setIf(&config.DatabaseName, c.DatabaseName)
	setIf(&config.User, c.User)
	setIf(&config.Password, c.Password)
	setIf(&config.SSLMode, c.SSLMode)
	setIf(&config.MaintenanceDatabase, c.MaintenanceDatabase)
	setIf(&config.SetupSchema, c.SetupSchema)
	setIf(&config.LogLevel, c.LogLevel)
	setIf(&config.Hasher, c.Hasher)
	if c.IndexWaitInterval != nil {
		config.IndexWaitInterval = c.IndexWaitInterval.Duration
	}
	if c.IndexWaitTimeout != nil {
		config.IndexWaitTimeout = c.IndexWaitTimeout.Duration
	}
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
