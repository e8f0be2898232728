package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzigram/platzigram-db/internal/common"
	"github.com/platzigram/platzigram-db/internal/logging"
)

func newInitializer() *SchemaInitializer {
	return NewSchemaInitializer(Config{IndexWaitInterval: time.Millisecond}, logging.NewNopLogger())
}

func TestEnsureDatabase_Exists(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT datname FROM pg_database WHERE NOT datistemplate`).
		WillReturnRows(sqlmock.NewRows([]string{"datname"}).AddRow("postgres").AddRow("platzigram"))

	created, err := newInitializer().EnsureDatabase(context.Background(), db)
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDatabase_Creates(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT datname FROM pg_database`).
		WillReturnRows(sqlmock.NewRows([]string{"datname"}).AddRow("postgres"))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "platzigram"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := newInitializer().EnsureDatabase(context.Background(), db)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDatabase_CreateFails(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT datname FROM pg_database`).
		WillReturnRows(sqlmock.NewRows([]string{"datname"}))
	mock.ExpectExec(`CREATE DATABASE`).WillReturnError(errors.New("permission denied"))

	_, err := newInitializer().EnsureDatabase(context.Background(), db)

	var se *common.SchemaError
	require.ErrorAs(t, err, &se)
	assert.EqualError(t, se.Err, "permission denied")
}

func TestEnsureDatabase_ListFails(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT datname FROM pg_database`).WillReturnError(errors.New("db down"))

	_, err := newInitializer().EnsureDatabase(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list databases")
}

func TestEnsureTables_AlreadyProvisionedIsNoop(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT tablename FROM pg_tables WHERE schemaname = 'public'`).
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("images").AddRow("users"))

	require.NoError(t, newInitializer().EnsureTables(context.Background(), db))
	// any CREATE would have been an unexpected call
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTables_CreatesOnlyMissing(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT tablename FROM pg_tables`).
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("images"))
	expectTableWithIndexes(mock, "users", IndexUsersUsername)

	require.NoError(t, newInitializer().EnsureTables(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTables_CreateTableFails(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT tablename FROM pg_tables`).
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}))
	mock.ExpectExec(`CREATE TABLE images`).WillReturnError(errors.New("disk full"))

	err := newInitializer().EnsureTables(context.Background(), db)

	var se *common.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create table images", se.Op)
}

func TestEnsureTables_CreateIndexFails(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT tablename FROM pg_tables`).
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("images"))
	mock.ExpectExec(`CREATE TABLE users`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX CONCURRENTLY users_username_idx`).WillReturnError(errors.New("boom"))

	err := newInitializer().EnsureTables(context.Background(), db)

	var se *common.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create index users_username_idx", se.Op)
}

func TestWaitIndex_PollsUntilReady(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	q := `SELECT i.indisvalid AND i.indisready`
	mock.ExpectQuery(q).WithArgs(IndexImagesUserID).WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(false))
	mock.ExpectQuery(q).WithArgs(IndexImagesUserID).WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(false))
	mock.ExpectQuery(q).WithArgs(IndexImagesUserID).WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(true))

	err := WaitIndex(context.Background(), db, IndexImagesUserID, time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitIndex_NotFound(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT i.indisvalid AND i.indisready`).
		WithArgs("missing_idx").
		WillReturnRows(sqlmock.NewRows([]string{"ready"}))

	err := WaitIndex(context.Background(), db, "missing_idx", time.Millisecond, time.Second)
	assert.ErrorIs(t, err, common.ErrIndexNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitIndex_DBErrorIsNotRetried(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT i.indisvalid AND i.indisready`).WillReturnError(errors.New("db down"))

	err := WaitIndex(context.Background(), db, IndexUsersUsername, time.Millisecond, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitIndex_Timeout(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	for i := 0; i < 500; i++ {
		mock.ExpectQuery(`SELECT i.indisvalid AND i.indisready`).
			WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(false))
	}

	err := WaitIndex(context.Background(), db, IndexImagesTags, time.Millisecond, 10*time.Millisecond)
	assert.ErrorIs(t, err, common.ErrIndexNotReady)
}
