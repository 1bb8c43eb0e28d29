// Package postgres contains the PostgreSQL implementation of repository.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/plant-keeper/internal/errs"
)

// PgxPool is a minimal abstraction over a Postgres connection pool,
// used by repositories. It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	// Exec executes a SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query executes a SELECT and returns a rows iterator.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// BeginTx starts a transaction with the provided options.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close shuts down the pool and frees resources.
	Close()
}

// DB wraps pgxpool.Pool to satisfy repository constructors and allow testing.
type DB struct{ Pool PgxPool }

// New creates a new connection pool for the given DSN.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Ping reports whether the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return storeErr("ping", db.Pool.Ping(ctx))
}

// inTx runs fn in a transaction, committing when fn returns nil. Errors
// are passed through storeErr.
func (db *DB) inTx(ctx context.Context, op string, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = storeErr(op, e)
		}
	}()
	return storeErr(op, fn(tx))
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// codecError marks a document that could not be encoded or decoded. The
// database was reachable, so storeErr does not report it as unavailable.
type codecError struct{ err error }

func (e codecError) Error() string { return e.err.Error() }
func (e codecError) Unwrap() error { return e.err }

// storeErr annotates err with op. Errors that did not come back from the
// server as a PgError mean the database could not be used at all and are
// marked errs.ErrStoreUnavailable; domain sentinels and codec errors pass
// through.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{errs.ErrNotFound, errs.ErrAlreadyCompleted, errs.ErrPendingExists,
		errs.ErrValidation, errs.ErrConflict, errs.ErrStoreUnavailable} {
		if errors.Is(err, s) {
			return err
		}
	}
	var (
		pg    *pgconn.PgError
		codec codecError
	)
	if errors.As(err, &pg) || errors.As(err, &codec) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStoreUnavailable, err)
}
