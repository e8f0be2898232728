package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"

	"github.com/platzigram/platzigram-db/internal/common"
	"github.com/platzigram/platzigram-db/internal/dbx"
	"github.com/platzigram/platzigram-db/internal/logging"
	"github.com/platzigram/platzigram-db/internal/metrics"
)

// Table names.
const (
	TableImages = "images"
	TableUsers  = "users"
)

// Secondary index names.
const (
	IndexImagesCreatedAt = "images_created_at_idx"
	IndexImagesUserID    = "images_user_id_idx"
	IndexImagesTags      = "images_tags_idx"
	IndexUsersUsername   = "users_username_idx"
)

type tableSpec struct {
	name    string
	create  string
	indexes []indexSpec
}

type indexSpec struct {
	name   string
	create string
}

// Indexes are built concurrently, so they only become usable once
// pg_index reports them valid and ready; see WaitIndex.
var tables = []tableSpec{
	{
		name: TableImages,
		create: `CREATE TABLE images (
			id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			public_id   text,
			description text NOT NULL DEFAULT '',
			url         text NOT NULL DEFAULT '',
			tags        jsonb NOT NULL DEFAULT '[]'::jsonb,
			user_id     text NOT NULL,
			likes       integer NOT NULL DEFAULT 0 CHECK (likes >= 0),
			liked       boolean NOT NULL DEFAULT false,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`,
		indexes: []indexSpec{
			{IndexImagesCreatedAt, `CREATE INDEX CONCURRENTLY images_created_at_idx ON images (created_at)`},
			{IndexImagesUserID, `CREATE INDEX CONCURRENTLY images_user_id_idx ON images (user_id)`},
			{IndexImagesTags, `CREATE INDEX CONCURRENTLY images_tags_idx ON images USING GIN (tags jsonb_path_ops)`},
		},
	},
	{
		name: TableUsers,
		create: `CREATE TABLE users (
			id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			username   text NOT NULL,
			password   text NOT NULL DEFAULT '',
			name       text NOT NULL DEFAULT '',
			email      text NOT NULL DEFAULT '',
			facebook   boolean NOT NULL DEFAULT false,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		indexes: []indexSpec{
			{IndexUsersUsername, `CREATE INDEX CONCURRENTLY users_username_idx ON users (username)`},
		},
	},
}

// SchemaInitializer idempotently provisions the target database, its tables
// and their indexes. Every object is checked for existence first, so running
// it against a provisioned database changes nothing.
type SchemaInitializer struct {
	cfg    Config
	logger logging.Logger
}

func NewSchemaInitializer(cfg Config, logger logging.Logger) *SchemaInitializer {
	return &SchemaInitializer{cfg: cfg.WithDefaults(), logger: logger}
}

// EnsureDatabase creates the configured database through admin, a connection
// to the maintenance database, unless it already exists.
func (s *SchemaInitializer) EnsureDatabase(ctx context.Context, admin dbx.DBTX) (bool, error) {
	names, err := listStrings(ctx, admin, `SELECT datname FROM pg_database WHERE NOT datistemplate`)
	if err != nil {
		return false, fmt.Errorf("list databases: %w", err)
	}
	if slices.Contains(names, s.cfg.DatabaseName) {
		s.logger.Debug(ctx, "database exists", "db", s.cfg.DatabaseName)
		return false, nil
	}

	// CREATE DATABASE takes no bind parameters.
	query := fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{s.cfg.DatabaseName}.Sanitize())
	if _, err := admin.ExecContext(ctx, query); err != nil {
		return false, common.NewSchemaError("create database", err)
	}
	s.logger.Info(ctx, "database created", "db", s.cfg.DatabaseName)
	return true, nil
}

// EnsureTables creates the images and users tables when absent. Indexes of a
// table are created, and waited for, only when the table itself was created.
func (s *SchemaInitializer) EnsureTables(ctx context.Context, db dbx.DBTX) error {
	existing, err := listStrings(ctx, db, `SELECT tablename FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	for _, t := range tables {
		if slices.Contains(existing, t.name) {
			s.logger.Debug(ctx, "table exists", "table", t.name)
			continue
		}

		if _, err := db.ExecContext(ctx, t.create); err != nil {
			return common.NewSchemaError("create table "+t.name, err)
		}
		s.logger.Info(ctx, "table created", "table", t.name)

		for _, idx := range t.indexes {
			if _, err := db.ExecContext(ctx, idx.create); err != nil {
				return common.NewSchemaError("create index "+idx.name, err)
			}
			if err := WaitIndex(ctx, db, idx.name, s.cfg.IndexWaitInterval, s.cfg.IndexWaitTimeout); err != nil {
				return err
			}
			s.logger.Info(ctx, "index created", "table", t.name, "index", idx.name)
		}
	}
	return nil
}

// WaitIndex polls every interval until index is valid and ready, giving up
// after timeout. An index that does not exist fails with
// common.ErrIndexNotFound without polling.
func WaitIndex(ctx context.Context, db dbx.DBTX, index string, interval, timeout time.Duration) error {
	start := time.Now()
	defer metrics.ObserveIndexWait(index, start)

	query := `SELECT i.indisvalid AND i.indisready
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indexrelid
		WHERE c.relname = $1`

	b := retry.WithMaxDuration(timeout, retry.NewConstant(interval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var ready bool
		err := db.QueryRowContext(ctx, query, index).Scan(&ready)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", common.ErrIndexNotFound, index)
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !ready {
			return retry.RetryableError(fmt.Errorf("%w: %s", common.ErrIndexNotReady, index))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wait index: %w", err)
	}
	return nil
}

func listStrings(ctx context.Context, db dbx.DBTX, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
