package database

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Config describes how to reach the storage engine and whether to provision
// the schema on connect.
type Config struct {
	Host         string
	Port         int
	DatabaseName string
	User         string
	Password     string
	SSLMode      string

	// MaintenanceDatabase is the database used to list and create databases
	// when SetupSchema is enabled.
	MaintenanceDatabase string

	// SetupSchema chains schema provisioning into Connect.
	SetupSchema bool

	IndexWaitInterval time.Duration
	IndexWaitTimeout  time.Duration
}

// DefaultConfig returns the configuration used for zero-valued fields.
func DefaultConfig() Config {
	return Config{
		Host:                "localhost",
		Port:                5432,
		DatabaseName:        "platzigram",
		User:                "postgres",
		SSLMode:             "disable",
		MaintenanceDatabase: "postgres",
		IndexWaitInterval:   50 * time.Millisecond,
		IndexWaitTimeout:    30 * time.Second,
	}
}

// WithDefaults returns a copy of c whose empty fields are taken from
// DefaultConfig. SetupSchema and Password are kept as given.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.DatabaseName == "" {
		c.DatabaseName = d.DatabaseName
	}
	if c.User == "" {
		c.User = d.User
	}
	if c.SSLMode == "" {
		c.SSLMode = d.SSLMode
	}
	if c.MaintenanceDatabase == "" {
		c.MaintenanceDatabase = d.MaintenanceDatabase
	}
	if c.IndexWaitInterval <= 0 {
		c.IndexWaitInterval = d.IndexWaitInterval
	}
	if c.IndexWaitTimeout <= 0 {
		c.IndexWaitTimeout = d.IndexWaitTimeout
	}
	return c
}

// ConnConfig returns the pgx connection settings for dbName. Unset fields
// fall back to the libpq defaults and PG* environment variables resolved by
// pgx.ParseConfig.
func (c Config) ConnConfig(dbName string) (*pgx.ConnConfig, error) {
	if c.Port < 0 || c.Port > math.MaxUint16 {
		return nil, fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SSLMode != "" && !slices.Contains(sslModes, c.SSLMode) {
		return nil, fmt.Errorf("invalid sslmode %q", c.SSLMode)
	}

	var opts string
	if c.SSLMode != "" {
		opts = "sslmode=" + c.SSLMode
	}
	pc, err := pgx.ParseConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}

	pc.Database = dbName
	if c.User != "" {
		pc.User = c.User
	}
	if c.Password != "" {
		pc.Password = c.Password
	}
	if c.Host != "" {
		setHost(&pc.Config, c.Host, uint16(c.Port))
	} else if c.Port != 0 {
		setHost(&pc.Config, pc.Host, uint16(c.Port))
	}
	return pc, nil
}

var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// setHost points the primary target and every TLS fallback at host:port.
// A zero port keeps the parsed one.
func setHost(pc *pgconn.Config, host string, port uint16) {
	if port == 0 {
		port = pc.Port
	}
	pc.Host, pc.Port = host, port
	if pc.TLSConfig != nil && pc.TLSConfig.ServerName != "" {
		pc.TLSConfig.ServerName = host
	}
	for _, fb := range pc.Fallbacks {
		fb.Host, fb.Port = host, port
		if fb.TLSConfig != nil && fb.TLSConfig.ServerName != "" {
			fb.TLSConfig.ServerName = host
		}
	}
}
