package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/core"
	"kharcha/internal/store"
)

// EventPublisher publishes transaction change events to interested consumers.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, op, id string) error
	Close() error
}

// TransactionService orchestrates transaction operations across the store and AMQP
type TransactionService struct {
	store     store.TransactionStore
	publisher EventPublisher
	now       func() time.Time
}

func NewTransactionService(st store.TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     st,
		publisher: publisher,
		now:       time.Now,
	}
}

// Create normalizes and saves a transaction locally, then publishes a change event.
// A publish failure never fails the request, the store remains the source of truth.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	applied, err := s.store.Add(ctx, tx.Normalized(s.now()))
	if err != nil {
		return applied, err
	}

	if perr := s.publishEvent(ctx, amqp.OpAdd, applied.ID); perr != nil {
		slog.ErrorContext(ctx, "Failed to publish add event",
			"id", applied.ID, "error", perr)
		// Don't fail the request - transaction is saved locally
	}

	return applied, nil
}

// List returns the stored transactions in insertion order.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	return s.store.List(ctx)
}

// Delete removes a transaction locally and publishes a change event.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove transaction: %w", err)
	}

	if perr := s.publishEvent(ctx, amqp.OpRemove, id); perr != nil {
		slog.ErrorContext(ctx, "Failed to publish remove event",
			"id", id, "error", perr)
		// Don't fail the request - transaction is deleted locally
	}

	return nil
}

func (s *TransactionService) publishEvent(ctx context.Context, op, id string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping change event", "op", op)
		return nil
	}

	return s.publisher.PublishTransactionEvent(ctx, op, id)
}

// Close closes both the store and the publisher
func (s *TransactionService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}

	return nil
}
