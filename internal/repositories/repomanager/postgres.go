// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and schema provisioning.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/platzigram/platzigram-db/internal/database"
	"github.com/platzigram/platzigram-db/internal/hasher"
	"github.com/platzigram/platzigram-db/internal/logging"
	"github.com/platzigram/platzigram-db/internal/repositories/images"
	"github.com/platzigram/platzigram-db/internal/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema provisioning hook.
type PostgresRepositoryManager struct {
	hasher hasher.Hasher
	logger logging.Logger
}

// Images returns an images.Repository bound to the provided connection.
func (m *PostgresRepositoryManager) Images(conn database.Conn) images.Repository {
	return images.NewPostgresRepository(conn)
}

// Users returns a users.Repository bound to the provided connection.
func (m *PostgresRepositoryManager) Users(conn database.Conn) users.Repository {
	return users.NewPostgresRepository(conn, m.hasher)
}

// ensureTables is a seam for testing schema provisioning.
var ensureTables = func(ctx context.Context, s *database.SchemaInitializer, db *sql.DB) error {
	return s.EnsureTables(ctx, db)
}

// SetupSchema creates the tables and indexes missing from db. Index waits
// use the polling settings of cfg.
func (m *PostgresRepositoryManager) SetupSchema(ctx context.Context, cfg database.Config, db *sql.DB) error {
	s := database.NewSchemaInitializer(cfg, m.logger)
	return ensureTables(ctx, s, db)
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
// A nil hasher selects hasher.Default.
func NewPostgresRepositoryManager(h hasher.Hasher, logger logging.Logger) RepositoryManager {
	if h == nil {
		h = hasher.Default()
	}
	return &PostgresRepositoryManager{hasher: h, logger: logger}
}
