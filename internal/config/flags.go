package config

import (
	"flag"
	"io"

	"github.com/platzigram/platzigram-db/internal/flagx"
)

var knownFlags = []string{
	"-host", "-port", "-db", "-user", "-password", "-sslmode", "-maintenance-db",
	"-setup", "-index-wait-interval", "-index-wait-timeout", "-log-level", "-hasher",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-host string                  PostgreSQL host
//	-port int                     PostgreSQL port
//	-db string                    database name
//	-user string                  database user
//	-password string              database password
//	-sslmode string               sslmode connection parameter
//	-maintenance-db string        database used to create -db
//	-setup                        provision schema on connect
//	-index-wait-interval duration index readiness polling interval
//	-index-wait-timeout duration  index readiness timeout
//	-log-level string             debug, info, warn or error
//	-hasher string                bcrypt or argon2
//
// args is filtered with flagx.FilterArgs first, so flags owned by other
// components are ignored.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.Host, "host", config.Host, "PostgreSQL host")
	fs.IntVar(&config.Port, "port", config.Port, "PostgreSQL port")
	fs.StringVar(&config.DatabaseName, "db", config.DatabaseName, "database name")
	fs.StringVar(&config.User, "user", config.User, "database user")
	fs.StringVar(&config.Password, "password", config.Password, "database password")
	fs.StringVar(&config.SSLMode, "sslmode", config.SSLMode, "sslmode connection parameter")
	fs.StringVar(&config.MaintenanceDatabase, "maintenance-db", config.MaintenanceDatabase, "database used to create -db")
	fs.BoolVar(&config.SetupSchema, "setup", config.SetupSchema, "provision schema on connect")
	fs.DurationVar(&config.IndexWaitInterval, "index-wait-interval", config.IndexWaitInterval, "index readiness polling interval")
	fs.DurationVar(&config.IndexWaitTimeout, "index-wait-timeout", config.IndexWaitTimeout, "index readiness timeout")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.Hasher, "hasher", config.Hasher, "password hashing algorithm")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
