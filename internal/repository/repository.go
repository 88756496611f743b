// Package repository implements all database queries for the registration
// platform. It uses pgx directly (no ORM) for transparency and performance.
//
// Every mutation of the hot counters (event capacity, tier inventory, bib
// counter) goes through a single serializable transaction in this package;
// no other code path may touch those columns.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when an event has no remaining capacity.
var ErrEventFull = errors.New("event is at capacity")

// ErrTierSoldOut is returned when a tier has no remaining inventory.
var ErrTierSoldOut = errors.New("tier is sold out")

// ErrAlreadyRegistered is returned when the user already holds a confirmed
// registration for the event.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrStoreConflict is returned when transaction-conflict retries are
// exhausted. The request can be retried as a fresh attempt.
var ErrStoreConflict = errors.New("storage conflict, please retry")

const maxTxAttempts = 3

// withTx runs fn inside a serializable transaction. Serialization failures
// and deadlocks (SQLSTATE 40001/40P01) are retried a bounded number of
// times; fn must therefore be free of side effects outside the transaction.
func withTx(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(ctx, db, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreConflict, err)
}

func runTx(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
