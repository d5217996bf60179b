// Package ports declares the collaborators the contact service depends on.
package ports

import (
	"context"

	"contactlink/internal/contact/models"
	"contactlink/internal/outbox"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks ContactStore,ContactStoreTx,Locker

// ContactStore is the storage contract the reconciler runs against.
// Save inserts when ID is zero (assigning ID, CreatedAt and UpdatedAt) and
// updates otherwise.
type ContactStore interface {
	FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*models.Contact, error)
	FindClusterMembers(ctx context.Context, contactID int64) ([]*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
	AppendEvent(ctx context.Context, event outbox.Event) error
}

// ContactStoreTx provides the unit of work around one reconciliation. Either
// every write made through the store passed to fn becomes durable, or none.
type ContactStoreTx interface {
	RunInTx(ctx context.Context, fn func(store ContactStore) error) error
}

// Locker serializes reconciliations sharing any identifier key.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}
