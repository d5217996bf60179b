package service

import (
	"context"
	"sync"
	"time"

	"contactlink/internal/contact/ports"
)

// ContactStoreTx provides the transactional boundary around a reconciliation.
// Implementations wrap a database transaction or, in-memory, a staged copy
// guarded by a coarse lock.
type ContactStoreTx = ports.ContactStoreTx

// Stager hands out a private copy of a store plus the func that publishes it.
type Stager interface {
	Stage() (ports.ContactStore, func())
}

// defaultContactTxTimeout is the maximum duration for a contact transaction.
const defaultContactTxTimeout = 5 * time.Second

type inMemoryContactTx struct {
	mu      sync.Mutex
	stager  Stager
	timeout time.Duration
}

// NewInMemoryTx serializes units of work over stager. Writes land on a staged
// copy and are published only when fn returns nil.
func NewInMemoryTx(stager Stager) ContactStoreTx {
	return &inMemoryContactTx{stager: stager}
}

func (t *inMemoryContactTx) RunInTx(ctx context.Context, fn func(store ports.ContactStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultContactTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return err
	}

	staged, commit := t.stager.Stage()
	if err := fn(staged); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	commit()
	return nil
}
