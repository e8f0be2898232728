// Package common defines the sentinel errors and error types shared by the
// persistence layer. Callers should use errors.Is / errors.As to match them.
package common

import (
	"errors"
	"fmt"
)

var (
	// Connection lifecycle errors.
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")

	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")

	// Schema errors.
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexNotReady = errors.New("index not ready")
)

// SchemaError reports a write or creation the storage engine refused.
// Err is the first error reported by the engine.
type SchemaError struct {
	Op  string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NewSchemaError wraps err into a SchemaError for the given operation.
func NewSchemaError(op string, err error) error {
	return &SchemaError{Op: op, Err: err}
}
