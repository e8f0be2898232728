package database

import (
	"context"
	"database/sql"
	"sync"
)

// Handle is a connection that may still be resolving. It is created pending
// by Connect and resolved exactly once; every caller waiting on it observes
// the same *sql.DB or the same error.
type Handle struct {
	done chan struct{}
	once sync.Once
	db   *sql.DB
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) resolve(db *sql.DB, err error) {
	h.once.Do(func() {
		h.db, h.err = db, err
		close(h.done)
	})
}

// Done is closed once the handle has resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Resolved reports whether the handle has resolved.
func (h *Handle) Resolved() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the handle resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*sql.DB, error) {
	select {
	case <-h.done:
		return h.db, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
