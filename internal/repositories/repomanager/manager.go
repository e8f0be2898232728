package repomanager

import (
	"context"
	"database/sql"

	"github.com/platzigram/platzigram-db/internal/database"
	"github.com/platzigram/platzigram-db/internal/repositories/images"
	"github.com/platzigram/platzigram-db/internal/repositories/users"
)

type RepositoryManager interface {
	SetupSchema(context.Context, database.Config, *sql.DB) error
	Images(conn database.Conn) images.Repository
	Users(conn database.Conn) users.Repository
}
