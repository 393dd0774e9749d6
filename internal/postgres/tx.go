package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

// Store is the Postgres store.Store. Row locks taken through the Lock*
// methods serialize writers per inventory record, order and price series.
type Store struct {
	DB          *pgxpool.Pool
	Logger      *zap.Logger
	MaxRetries  uint64
	LockTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

func NewStore(db *pgxpool.Pool, logger *zap.Logger, maxRetries uint64) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{DB: db, Logger: logger, MaxRetries: maxRetries, LockTimeout: 2 * time.Second}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx store.Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := s.attempt(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		s.Logger.Warn("tx conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, s.MaxRetries), ctx))
	return translate(err)
}

func (s *Store) attempt(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.LockTimeout > 0 && opts.AccessMode != pgx.ReadOnly {
		// SET does not take bind parameters
		ms := s.LockTimeout.Milliseconds()
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
			return err
		}
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Retryable reports whether err is a write conflict that a fresh attempt of
// the same transaction may resolve.
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// translate maps driver errors that escaped the tx functions onto the
// engine's error taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if Retryable(err) {
		return fmt.Errorf("%w: %w", apperr.ErrTransient, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeCheckViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperr.ErrInsufficientStock)
	}
	return err
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, apperr.ErrNotFound)
	}
	return err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
