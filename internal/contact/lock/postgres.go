package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"contactlink/pkg/platform/sentinel"
)

// advisoryClass is the first argument of the two-key advisory lock functions,
// keeping identifier locks apart from any other advisory lock user.
const advisoryClass = 0x636c

const advisoryLockQuery = `SELECT pg_advisory_xact_lock($1::int4, hashtext($2::text))`

// Postgres is a Locker shared by every replica using the same database. Each
// Lock holds a dedicated read-committed transaction with one advisory lock per
// key; unlock rolls it back. The locks are granted before the reconciliation's
// own transaction begins, so its snapshot already sees the previous holder's
// commit.
type Postgres struct {
	db      *sql.DB
	holders chan struct{}
}

type PostgresOption func(*Postgres)

// WithMaxHolders bounds how many lock transactions may be open at once. Every
// holder also needs a second connection for its reconciliation, so the bound
// must stay below the pool size or holders can starve each other.
func WithMaxHolders(n int) PostgresOption {
	return func(p *Postgres) {
		if n > 0 {
			p.holders = make(chan struct{}, n)
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lock acquires keys in sorted order. If ctx ends first, the transaction is
// rolled back and every lock already granted is released.
func (p *Postgres) Lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := uniqueSorted(keys)
	if len(sorted) == 0 {
		return func() {}, nil
	}

	if p.holders != nil {
		select {
		case p.holders <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for a lock slot: %w", sentinel.ErrLocked, ctx.Err())
		}
	}
	leave := func() {
		if p.holders != nil {
			<-p.holders
		}
	}

	lockTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		leave()
		return nil, p.classify(ctx, "begin lock tx", err)
	}
	for _, key := range sorted {
		if _, err := lockTx.ExecContext(ctx, advisoryLockQuery, advisoryClass, key); err != nil {
			_ = lockTx.Rollback()
			leave()
			return nil, p.classify(ctx, key, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = lockTx.Rollback()
			leave()
		})
	}, nil
}

func (p *Postgres) classify(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", sentinel.ErrLocked, what, ctx.Err())
	}
	return fmt.Errorf("%w: advisory lock %s: %v", sentinel.ErrUnavailable, what, err)
}
