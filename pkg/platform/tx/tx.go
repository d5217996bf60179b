// Package tx runs database work inside a single *sql.Tx with bounded retries on
// serialization failures.
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"contactlink/pkg/platform/sentinel"
)

// Executor is satisfied by both *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxAttempts = 3
	retryBaseDelay     = 10 * time.Millisecond
)

// Postgres SQLSTATEs that mean "run the whole transaction again".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Runner opens transactions on db. The zero values of Timeout and MaxAttempts
// fall back to 5s and 3. Retries wait a jittered, linearly growing delay.
type Runner struct {
	DB          *sql.DB
	Isolation   sql.IsolationLevel
	Timeout     time.Duration
	MaxAttempts int
}

// Run executes fn in a transaction. fn is re-run from scratch when the commit or
// any statement fails with a serialization failure or deadlock; every attempt
// rolls back fully before the next starts. Exhausted retries surface
// sentinel.ErrConflict.
func (r *Runner) Run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return fmt.Errorf("%w: %w", err, lastErr)
			}
		}
		lastErr = r.runOnce(ctx, fn)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %w", sentinel.ErrConflict, lastErr)
}

// backoff returns the wait before retry number attempt (1-based): a random
// delay in [attempt*base, 2*attempt*base).
func backoff(attempt int) time.Duration {
	step := time.Duration(attempt) * retryBaseDelay
	return step + rand.N(step)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) runOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, &sql.TxOptions{Isolation: r.Isolation})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a postgres serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
