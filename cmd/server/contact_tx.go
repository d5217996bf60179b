package main

import (
	"context"
	"database/sql"
	"time"

	"contactlink/internal/contact/ports"
	contactstore "contactlink/internal/contact/store"
	"contactlink/pkg/platform/tx"
)

const defaultContactTxTimeout = 5 * time.Second

// contactPostgresTx runs each reconciliation in a repeatable-read transaction.
// Serialization failures re-run the reconciliation from its first lookup.
type contactPostgresTx struct {
	runner *tx.Runner
}

func newContactPostgresTx(db *sql.DB, timeout time.Duration) *contactPostgresTx {
	if timeout == 0 {
		timeout = defaultContactTxTimeout
	}
	return &contactPostgresTx{runner: &tx.Runner{
		DB:        db,
		Isolation: sql.LevelRepeatableRead,
		Timeout:   timeout,
	}}
}

func (t *contactPostgresTx) RunInTx(ctx context.Context, fn func(store ports.ContactStore) error) error {
	return t.runner.Run(ctx, func(sqlTx *sql.Tx) error {
		return fn(contactstore.NewPostgresTx(sqlTx))
	})
}
