// Package users provides the PostgreSQL-backed repository for accounts.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platzigram/platzigram-db/internal/common"
	"github.com/platzigram/platzigram-db/internal/database"
	"github.com/platzigram/platzigram-db/internal/dbx"
	"github.com/platzigram/platzigram-db/internal/hasher"
	"github.com/platzigram/platzigram-db/internal/metrics"
	"github.com/platzigram/platzigram-db/internal/models"
)

const userColumns = `id, username, password, name, email, facebook, created_at`

type PostgresRepository struct {
	conn   database.Conn
	hasher hasher.Hasher
	now    func() time.Time
}

func NewPostgresRepository(conn database.Conn, h hasher.Hasher) *PostgresRepository {
	if h == nil {
		h = hasher.Default()
	}
	return &PostgresRepository{conn: conn, hasher: h, now: time.Now}
}

// SaveUser stores a new account and returns the stored record. Passwords of
// accounts not federated through Facebook are hashed first. A username that
// is already taken fails with common.ErrUsernameTaken.
func (r *PostgresRepository) SaveUser(ctx context.Context, user *models.User) (result *models.User, err error) {
	defer observe("save_user", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	rec := *user
	if rec.Facebook {
		rec.Password = ""
	} else {
		hash, err := r.hasher.Hash(rec.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		rec.Password = hash
	}

	taken, err := r.usernameTaken(ctx, db, rec.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, common.ErrUsernameTaken
	}

	rec.CreatedAt = r.now().UTC()

	query :=
		`INSERT INTO users (username, password, name, email, facebook, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `
	if err := db.QueryRowContext(ctx, query,
		rec.Username, rec.Password, rec.Name, rec.Email, rec.Facebook, rec.CreatedAt).Scan(&rec.ID); err != nil {
		return nil, common.NewSchemaError("insert user", err)
	}

	return r.getByID(ctx, db, rec.ID)
}

// GetUser returns the first account registered under username.
func (r *PostgresRepository) GetUser(ctx context.Context, username string) (result *models.User, err error) {
	defer observe("get_user", time.Now(), &err)

	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.conn.WaitIndex(ctx, db, database.IndexUsersUsername); err != nil {
		return nil, err
	}

	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE username = $1
		 ORDER BY created_at
		 LIMIT 1`
	return scanUser(db.QueryRowContext(ctx, query, username))
}

// Authenticate reports whether password is valid for username. A failed
// lookup, whatever the cause, is reported as false so callers cannot tell a
// missing account from a wrong password. Only ErrNotConnected propagates.
func (r *PostgresRepository) Authenticate(ctx context.Context, username, password string) (ok bool, err error) {
	defer observe("authenticate", time.Now(), &err)

	user, err := r.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotConnected) {
			return false, err
		}
		return false, nil
	}

	// federated accounts have no local credential
	if user.Facebook || user.Password == "" {
		return false, nil
	}
	return r.hasher.Verify(user.Password, password), nil
}

func (r *PostgresRepository) usernameTaken(ctx context.Context, db *sql.DB, username string) (bool, error) {
	if err := r.conn.WaitIndex(ctx, db, database.IndexUsersUsername); err != nil {
		return false, err
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	if err := db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) getByID(ctx context.Context, db dbx.DBTX, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Name, &user.Email, &user.Facebook, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveQuery(op, start, *err)
}
