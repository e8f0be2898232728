// Package database manages the connection to the storage engine: a single
// lazily resolved handle shared by every repository operation, optional
// schema provisioning on connect, and waiting for secondary indexes.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/platzigram/platzigram-db/internal/common"
	"github.com/platzigram/platzigram-db/internal/dbx"
	"github.com/platzigram/platzigram-db/internal/logging"
	"github.com/platzigram/platzigram-db/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// State is the connection lifecycle state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// openDB is a seam for stdlib.OpenDB.
var openDB OpenFunc = func(cfg pgx.ConnConfig) (*sql.DB, error) {
	return stdlib.OpenDB(cfg), nil
}

// OpenFunc opens a *sql.DB from pgx connection settings.
type OpenFunc func(cfg pgx.ConnConfig) (*sql.DB, error)

// Option configures a Manager.
type Option func(*Manager)

// WithOpenFunc replaces stdlib.OpenDB when establishing connections.
func WithOpenFunc(fn OpenFunc) Option {
	return func(m *Manager) {
		m.openFn = fn
	}
}

// Manager owns one connection to the storage engine.
//
// Connect marks the manager connected immediately and resolves the
// connection in the background, so operations may be issued right away:
// they queue on the pending Handle until it resolves.
type Manager struct {
	mu        sync.Mutex
	connected bool
	handle    *Handle
	cfg       Config
	logger    logging.Logger
	openFn    OpenFunc
}

// NewManager returns a disconnected Manager.
func NewManager(logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{logger: logger.With("module", "database")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) openConn(cfg Config, dbName string) (*sql.DB, error) {
	cc, err := cfg.ConnConfig(dbName)
	if err != nil {
		return nil, err
	}
	if m.openFn != nil {
		return m.openFn(*cc)
	}
	return openDB(*cc)
}

// Connect starts connecting with cfg and returns the pending handle. When
// cfg.SetupSchema is set the handle resolves only after the schema has been
// provisioned.
func (m *Manager) Connect(ctx context.Context, cfg Config) (*Handle, error) {
	cfg = cfg.WithDefaults()

	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil, common.ErrAlreadyConnected
	}
	h := newHandle()
	m.connected = true
	m.handle = h
	m.cfg = cfg
	m.mu.Unlock()

	metrics.SetConnected(true)
	m.logger.Info(ctx, "connecting", "host", cfg.Host, "port", cfg.Port, "db", cfg.DatabaseName, "setup_schema", cfg.SetupSchema)

	// The handle outlives the caller's request.
	bg := context.WithoutCancel(ctx)
	go func() {
		db, err := m.open(bg, cfg)
		if err != nil {
			m.logger.Error(bg, "connect failed", "error", err)
		} else {
			m.logger.Info(bg, "connected", "db", cfg.DatabaseName)
		}
		h.resolve(db, err)
	}()

	return h, nil
}

func (m *Manager) open(ctx context.Context, cfg Config) (*sql.DB, error) {
	schema := NewSchemaInitializer(cfg, m.logger)

	if cfg.SetupSchema {
		if err := m.ensureDatabase(ctx, cfg, schema); err != nil {
			return nil, err
		}
	}

	db, err := m.openConn(cfg, cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if cfg.SetupSchema {
		if err := schema.EnsureTables(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	metrics.UpdateDBStats(db)
	return db, nil
}

func (m *Manager) ensureDatabase(ctx context.Context, cfg Config, schema *SchemaInitializer) error {
	admin, err := m.openConn(cfg, cfg.MaintenanceDatabase)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer admin.Close()

	_, err = schema.EnsureDatabase(ctx, admin)
	return err
}

// Disconnect waits for the pending connection, closes it and marks the
// manager disconnected.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return common.ErrNotConnected
	}
	h := m.handle
	m.mu.Unlock()

	db, err := h.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		return err
	}

	// Only one of several concurrent callers owns the close.
	m.mu.Lock()
	if !m.connected || m.handle != h {
		m.mu.Unlock()
		return common.ErrNotConnected
	}
	m.connected = false
	m.handle = nil
	m.mu.Unlock()
	metrics.SetConnected(false)

	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("db close error: %w", err)
	}
	m.logger.Info(ctx, "disconnected")
	return nil
}

// DB returns the shared connection, waiting for it to resolve if needed.
// It fails with common.ErrNotConnected outside Connect/Disconnect.
func (m *Manager) DB(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil, common.ErrNotConnected
	}
	h := m.handle
	m.mu.Unlock()

	return h.Wait(ctx)
}

// WaitIndex blocks until the named index is ready, using the configured
// polling interval and timeout.
func (m *Manager) WaitIndex(ctx context.Context, db dbx.DBTX, index string) error {
	m.mu.Lock()
	cfg := m.cfg.WithDefaults()
	m.mu.Unlock()

	return WaitIndex(ctx, db, index, cfg.IndexWaitInterval, cfg.IndexWaitTimeout)
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case !m.connected:
		return StateDisconnected
	case !m.handle.Resolved():
		return StateConnecting
	default:
		return StateConnected
	}
}

// Config returns the configuration of the current or last connection.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}
