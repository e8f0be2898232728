package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzigram/platzigram-db/internal/common"
	"github.com/platzigram/platzigram-db/internal/logging"
)

// stubOpen replaces openDB for the duration of the test. Connections are
// handed out by database name.
func stubOpen(t *testing.T, byDB map[string]*sql.DB) {
	t.Helper()
	orig := openDB
	openDB = func(cfg pgx.ConnConfig) (*sql.DB, error) {
		db, ok := byDB[cfg.Database]
		if !ok {
			return nil, errors.New("unexpected database " + cfg.Database)
		}
		return db, nil
	}
	t.Cleanup(func() { openDB = orig })
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func newManager() *Manager {
	return NewManager(logging.NewNopLogger())
}

func TestManager_OperationsBeforeConnect(t *testing.T) {
	m := newManager()

	_, err := m.DB(context.Background())
	assert.ErrorIs(t, err, common.ErrNotConnected)
	assert.ErrorIs(t, m.Disconnect(context.Background()), common.ErrNotConnected)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManager_ConnectAndDisconnect(t *testing.T) {
	db, mock := newMock(t)
	stubOpen(t, map[string]*sql.DB{"platzigram": db})
	mock.ExpectClose()

	m := newManager()
	ctx := context.Background()

	h, err := m.Connect(ctx, Config{})
	require.NoError(t, err)

	got, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.Equal(t, StateConnected, m.State())

	shared, err := m.DB(ctx)
	require.NoError(t, err)
	assert.Same(t, db, shared)

	require.NoError(t, m.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, m.State())

	_, err = m.DB(ctx)
	assert.ErrorIs(t, err, common.ErrNotConnected)
	assert.ErrorIs(t, m.Disconnect(ctx), common.ErrNotConnected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_ConnectTwice(t *testing.T) {
	db, _ := newMock(t)
	stubOpen(t, map[string]*sql.DB{"platzigram": db})

	m := newManager()
	_, err := m.Connect(context.Background(), Config{})
	require.NoError(t, err)

	_, err = m.Connect(context.Background(), Config{})
	assert.ErrorIs(t, err, common.ErrAlreadyConnected)
}

func TestManager_OperationsQueueUntilResolved(t *testing.T) {
	db, _ := newMock(t)
	release := make(chan struct{})

	orig := openDB
	openDB = func(pgx.ConnConfig) (*sql.DB, error) {
		<-release
		return db, nil
	}
	t.Cleanup(func() { openDB = orig })

	m := newManager()
	ctx := context.Background()

	h, err := m.Connect(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, StateConnecting, m.State())

	type result struct {
		db  *sql.DB
		err error
	}
	out := make(chan result, 1)
	go func() {
		got, err := m.DB(ctx)
		out <- result{got, err}
	}()

	select {
	case <-out:
		t.Fatal("DB returned before the connection resolved")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-h.Done()

	r := <-out
	require.NoError(t, r.err)
	assert.Same(t, db, r.db)
	assert.Equal(t, StateConnected, m.State())
}

func TestManager_DBHonorsContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	orig := openDB
	openDB = func(pgx.ConnConfig) (*sql.DB, error) {
		<-release
		return nil, errors.New("gave up")
	}
	t.Cleanup(func() { openDB = orig })

	m := newManager()
	_, err := m.Connect(context.Background(), Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = m.DB(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_OpenError(t *testing.T) {
	orig := openDB
	openDB = func(pgx.ConnConfig) (*sql.DB, error) {
		return nil, errors.New("no route to host")
	}
	t.Cleanup(func() { openDB = orig })

	m := newManager()
	ctx := context.Background()

	h, err := m.Connect(ctx, Config{})
	require.NoError(t, err)

	_, err = h.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route to host")

	_, err = m.DB(ctx)
	assert.Error(t, err)

	err = m.Disconnect(ctx)
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManager_PingError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	stubOpen(t, map[string]*sql.DB{"platzigram": db})
	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()

	m := newManager()
	h, err := m.Connect(context.Background(), Config{})
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db ping error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_ConnectWithSchemaSetup(t *testing.T) {
	admin, adminMock := newMock(t)
	db, mock := newMock(t)
	stubOpen(t, map[string]*sql.DB{"postgres": admin, "platzigram": db})

	adminMock.ExpectQuery(`SELECT datname FROM pg_database`).
		WillReturnRows(sqlmock.NewRows([]string{"datname"}).AddRow("postgres"))
	adminMock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "platzigram"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	adminMock.ExpectClose()

	mock.ExpectQuery(`SELECT tablename FROM pg_tables`).
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}))
	expectTableWithIndexes(mock, "images", IndexImagesCreatedAt, IndexImagesUserID, IndexImagesTags)
	expectTableWithIndexes(mock, "users", IndexUsersUsername)

	m := newManager()
	h, err := m.Connect(context.Background(), Config{SetupSchema: true, IndexWaitInterval: time.Millisecond})
	require.NoError(t, err)

	got, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, db, got)

	require.NoError(t, adminMock.ExpectationsWereMet())
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectTableWithIndexes(mock sqlmock.Sqlmock, table string, indexes ...string) {
	mock.ExpectExec(`CREATE TABLE ` + table).WillReturnResult(sqlmock.NewResult(0, 0))
	for _, idx := range indexes {
		mock.ExpectExec(`CREATE INDEX CONCURRENTLY ` + idx).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT i.indisvalid AND i.indisready`).
			WithArgs(idx).
			WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(true))
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}

func TestManager_WithOpenFunc(t *testing.T) {
	db, _ := newMock(t)
	var got pgx.ConnConfig
	m := NewManager(logging.NewNopLogger(), WithOpenFunc(func(cfg pgx.ConnConfig) (*sql.DB, error) {
		got = cfg
		return db, nil
	}))

	h, err := m.Connect(context.Background(), Config{Host: "db.internal", Port: 6543})
	require.NoError(t, err)

	resolved, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Same(t, db, resolved)
	assert.Equal(t, "db.internal", got.Host)
	assert.Equal(t, uint16(6543), got.Port)
	assert.Equal(t, "platzigram", got.Database)
}

func TestManager_InvalidConfig(t *testing.T) {
	m := newManager()
	h, err := m.Connect(context.Background(), Config{SSLMode: "sometimes"})
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sslmode")
}

func TestManager_ConcurrentDisconnect(t *testing.T) {
	db, mock := newMock(t)
	stubOpen(t, map[string]*sql.DB{"platzigram": db})
	mock.ExpectClose()

	m := newManager()
	ctx := context.Background()
	h, err := m.Connect(ctx, Config{})
	require.NoError(t, err)
	_, err = h.Wait(ctx)
	require.NoError(t, err)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Disconnect(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	var ok, notConnected int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, common.ErrNotConnected):
			notConnected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one caller closes the connection")
	assert.Equal(t, callers-1, notConnected)
	require.NoError(t, mock.ExpectationsWereMet())
}
