package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, lockers and transaction
// runners return these (optionally wrapped) so services can translate them into
// domain errors.
//
// - ErrNotFound: record does not exist in store
// - ErrConflict: write lost against a concurrent transaction
// - ErrLocked: identifier lock is held by another reconciliation
// - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrLocked      = errors.New("locked")
	ErrUnavailable = errors.New("unavailable")
)
