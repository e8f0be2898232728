package database

import (
	"context"
	"database/sql"

	"github.com/platzigram/platzigram-db/internal/dbx"
)

// Conn is what repositories need from a connection: the shared handle and a
// way to wait for the indexes their queries depend on. *Manager implements it.
type Conn interface {
	DB(ctx context.Context) (*sql.DB, error)
	WaitIndex(ctx context.Context, db dbx.DBTX, index string) error
}

var _ Conn = (*Manager)(nil)
