package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"kharcha/internal/core"
	"kharcha/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the document-store backend: each transaction is
// a row keyed by a store-assigned UUID, with insertion order carried
// by rowid.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection avoids SQLite locking issues.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Add implements store.TransactionStore. A failed insert leaves the
// collection unchanged.
func (r *SQLiteRepository) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, name, amount_cents, type, date, category)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Name, tx.Amount.Cents, string(tx.Type), tx.Date.String(), tx.Category)
	if err != nil {
		return core.Transaction{}, &store.PersistenceError{Op: "insert transaction", Err: err}
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"name", tx.Name,
		"amount_cents", tx.Amount.Cents,
		"type", tx.Type)

	return tx, nil
}

// List implements store.TransactionStore, insertion order preserved.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount_cents, type, date, category
		 FROM transactions ORDER BY rowid ASC`)
	if err != nil {
		return nil, &store.PersistenceError{Op: "query transactions", Err: err}
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			tx      core.Transaction
			typ     string
			dateStr string
		)
		if err := rows.Scan(&tx.ID, &tx.Name, &tx.Amount.Cents, &typ, &dateStr, &tx.Category); err != nil {
			return nil, &store.PersistenceError{Op: "scan transaction", Err: err}
		}
		tx.Type = core.TransactionType(typ)
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, &store.PersistenceError{Op: "parse stored date", Err: fmt.Errorf("%s: %w", dateStr, err)}
		}
		tx.Date = date
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "iterate transactions", Err: err}
	}
	return txs, nil
}

// Remove implements store.TransactionStore.
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return &store.PersistenceError{Op: "delete transaction", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &store.PersistenceError{Op: "delete transaction", Err: err}
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}
