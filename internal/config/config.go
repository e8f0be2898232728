// Package config handles configuration for the platzigram-db tool: defaults,
// a JSON file overlay, environment variables and command-line flags, applied
// in that order.
package config

import (
	"time"

	"github.com/platzigram/platzigram-db/internal/database"
)

// Config holds runtime settings.
//
// Fields:
//   - Host / Port / DatabaseName / User / Password / SSLMode: how to reach PostgreSQL.
//   - MaintenanceDatabase: database used to create DatabaseName during setup.
//   - SetupSchema: provision database, tables and indexes on connect.
//   - IndexWaitInterval / IndexWaitTimeout: index readiness polling.
//   - LogLevel: debug, info, warn or error.
//   - Hasher: password hashing algorithm, bcrypt or argon2.
type Config struct {
	Host                string        `env:"PLATZIGRAM_DB_HOST"`
	Port                int           `env:"PLATZIGRAM_DB_PORT"`
	DatabaseName        string        `env:"PLATZIGRAM_DB_NAME"`
	User                string        `env:"PLATZIGRAM_DB_USER"`
	Password            string        `env:"PLATZIGRAM_DB_PASSWORD"`
	SSLMode             string        `env:"PLATZIGRAM_DB_SSLMODE"`
	MaintenanceDatabase string        `env:"PLATZIGRAM_DB_MAINTENANCE_DB"`
	SetupSchema         bool          `env:"PLATZIGRAM_DB_SETUP"`
	IndexWaitInterval   time.Duration `env:"PLATZIGRAM_DB_INDEX_WAIT_INTERVAL"`
	IndexWaitTimeout    time.Duration `env:"PLATZIGRAM_DB_INDEX_WAIT_TIMEOUT"`
	LogLevel            string        `env:"PLATZIGRAM_DB_LOG_LEVEL"`
	Hasher              string        `env:"PLATZIGRAM_DB_HASHER"`
}

// LoadDefaults populates Config with local development defaults.
func (c *Config) LoadDefaults() {
	d := database.DefaultConfig()
	c.Host = d.Host
	c.Port = d.Port
	c.DatabaseName = d.DatabaseName
	c.User = d.User
	c.SSLMode = d.SSLMode
	c.MaintenanceDatabase = d.MaintenanceDatabase
	c.IndexWaitInterval = d.IndexWaitInterval
	c.IndexWaitTimeout = d.IndexWaitTimeout
	c.LogLevel = "info"
	c.Hasher = "bcrypt"
}

// Database returns the connection settings part of c.
func (c *Config) Database() database.Config {
	return database.Config{
		Host:                c.Host,
		Port:                c.Port,
		DatabaseName:        c.DatabaseName,
		User:                c.User,
		Password:            c.Password,
		SSLMode:             c.SSLMode,
		MaintenanceDatabase: c.MaintenanceDatabase,
		SetupSchema:         c.SetupSchema,
		IndexWaitInterval:   c.IndexWaitInterval,
		IndexWaitTimeout:    c.IndexWaitTimeout,
	}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally the flags in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
