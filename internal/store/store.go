// Package store is the Postgres-backed credential and records store. It holds no
// business rules beyond what the schema enforces.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-records-api/internal/apperr"
)

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return translate("ping", err)
	}
	return nil
}

// Migrate executes a schema script. Statements must be idempotent.
func (s *Store) Migrate(ctx context.Context, script string) error {
	if _, err := s.pool.Exec(ctx, script); err != nil {
		return translate("migrate", err)
	}
	return nil
}

// InTx runs fn inside one read-committed transaction. Any error from fn rolls the
// whole unit back and is returned as is.
func (s *Store) InTx(ctx context.Context, fn func(Querier) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&queries{db: tx})
	})
	if err != nil {
		return translate("transaction", err)
	}
	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// translate maps driver errors into the storage taxonomy. Errors that already belong
// to the taxonomy pass through.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.AuthError
	var ve *apperr.ValidationError
	var se *apperr.StorageError
	if errors.As(err, &ae) || errors.As(err, &ve) || errors.As(err, &se) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == uniqueViolation || pgErr.Code == foreignKeyViolation) {
		return apperr.Storage(apperr.ConstraintViolation, op, err)
	}
	return apperr.Storage(apperr.Unavailable, op, err)
}
