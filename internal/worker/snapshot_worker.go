package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/store"
)

// SnapshotWorker mirrors the full transaction collection to a JSON snapshot
// file whenever a change event arrives. A periodic rewrite covers events
// lost while the worker was down.
type SnapshotWorker struct {
	store store.TransactionStore
	path  string
}

func NewSnapshotWorker(st store.TransactionStore, path string) *SnapshotWorker {
	return &SnapshotWorker{
		store: st,
		path:  path,
	}
}

type snapshot struct {
	GeneratedAt  time.Time        `json:"generated_at"`
	Transactions []snapshotRecord `json:"transactions"`
}

type snapshotRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Category    string `json:"category,omitempty"`
}

// HandleEvent processes a single transaction change event
func (w *SnapshotWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"op", msg.Op,
		"id", msg.ID)

	if err := w.WriteSnapshot(ctx); err != nil {
		return fmt.Errorf("write snapshot for event %s/%s: %w", msg.Op, msg.ID, err)
	}
	return nil
}

// WriteSnapshot reads the full collection and rewrites the snapshot file atomically.
func (w *SnapshotWorker) WriteSnapshot(ctx context.Context) error {
	txs, err := w.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	snap := snapshot{
		GeneratedAt:  time.Now().UTC(),
		Transactions: make([]snapshotRecord, 0, len(txs)),
	}
	for _, tx := range txs {
		snap.Transactions = append(snap.Transactions, snapshotRecord{
			ID:          tx.ID,
			Name:        tx.Name,
			AmountCents: tx.Amount.Cents,
			Type:        string(tx.Type),
			Date:        tx.Date.String(),
			Category:    tx.Category,
		})
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot written",
		"path", w.path,
		"transactions", len(snap.Transactions))

	return nil
}

// RunPeriodic rewrites the snapshot on a fixed interval until the context
// is cancelled. It covers change events missed during worker downtime.
func (w *SnapshotWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.WriteSnapshot(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic snapshot failed", "error", err)
			}
		}
	}
}
