// Package store defines the transaction collection contract shared by
// the file and SQLite backends.
package store

import (
	"context"
	"errors"
	"fmt"

	"kharcha/internal/core"
)

// ErrNotFound is returned by Remove when no record carries the id.
// The condition is benign for callers that only need idempotent
// deletes; the HTTP layer maps it to 404.
var ErrNotFound = errors.New("transaction not found")

// PersistenceError marks a failure of the durable layer, as opposed to
// a validation failure. Callers distinguish the two with errors.As.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// TransactionStore holds the ordered transaction collection.
//
// Every operation is total: Add either appends a fully validated
// record or leaves the collection untouched, and List always returns
// the collection in insertion order.
type TransactionStore interface {
	// Add validates the transaction, assigns a unique id, appends it,
	// and persists the collection. The saved record is returned.
	Add(ctx context.Context, tx core.Transaction) (core.Transaction, error)

	// List returns the full collection, insertion order preserved.
	List(ctx context.Context) ([]core.Transaction, error)

	// Remove deletes the record with the given id and persists the
	// collection. It returns ErrNotFound when no such record exists.
	Remove(ctx context.Context, id string) error

	Close() error
}
