// Package file implements the local persistence backend: the whole
// transaction collection lives in one JSON document that is read once
// at startup and atomically overwritten after every mutation.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"kharcha/internal/core"
	"kharcha/internal/store"
)

type document struct {
	Transactions []record `json:"transactions"`
}

type record struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	AmountCents int64                `json:"amount_cents"`
	Type        core.TransactionType `json:"type"`
	Date        core.Date            `json:"date"`
	Category    string               `json:"category,omitempty"`
}

// Store keeps the collection in memory and mirrors it to disk. A
// single mutex serializes mutations; there is at most one in-flight
// mutation at a time.
type Store struct {
	mu    sync.Mutex
	path  string
	items []core.Transaction
	seq   int64
}

// Open loads the collection from path. A missing file yields an empty
// store; a corrupt file is an error.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode store file %s: %w", path, err)
	}
	for _, r := range doc.Transactions {
		s.items = append(s.items, fromRecord(r))
		if n, err := strconv.ParseInt(r.ID, 10, 64); err == nil && n > s.seq {
			s.seq = n
		}
	}
	return s, nil
}

// Add validates, assigns the next sequence id, appends, and rewrites
// the file. When the durable write fails the record stays applied in
// memory and the saved record is returned alongside a
// PersistenceError, so callers can warn that the change may not
// survive a restart.
func (s *Store) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	tx.ID = strconv.FormatInt(s.seq, 10)
	s.items = append(s.items, tx)

	if err := s.persistLocked(); err != nil {
		slog.WarnContext(ctx, "Transaction applied in memory but not persisted",
			"id", tx.ID, "error", err)
		return tx, err
	}
	return tx, nil
}

// List returns a copy of the collection in insertion order.
func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Remove deletes by id and rewrites the file. The rewrite happens even
// when the id is absent, keeping the delete idempotent at the
// persistence level; the caller still gets ErrNotFound.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i, tx := range s.items {
		if tx.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			found = true
			break
		}
	}

	if err := s.persistLocked(); err != nil {
		slog.WarnContext(ctx, "Collection rewrite failed after delete",
			"id", id, "error", err)
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error { return nil }

// persistLocked rewrites the whole collection as one document via a
// temp file and rename. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	doc := document{Transactions: make([]record, len(s.items))}
	for i, tx := range s.items {
		doc.Transactions[i] = toRecord(tx)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &store.PersistenceError{Op: "encode collection", Err: err}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &store.PersistenceError{Op: "create store directory", Err: err}
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &store.PersistenceError{Op: "write collection", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &store.PersistenceError{Op: "replace collection file", Err: err}
	}
	return nil
}

func toRecord(tx core.Transaction) record {
	return record{
		ID:          tx.ID,
		Name:        tx.Name,
		AmountCents: tx.Amount.Cents,
		Type:        tx.Type,
		Date:        tx.Date,
		Category:    tx.Category,
	}
}

func fromRecord(r record) core.Transaction {
	return core.Transaction{
		ID:       r.ID,
		Name:     r.Name,
		Amount:   core.Money{Cents: r.AmountCents},
		Type:     r.Type,
		Date:     r.Date,
		Category: r.Category,
	}
}
