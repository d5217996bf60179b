package store

import "contactlink/pkg/platform/sentinel"

// ErrNotFound is returned by point lookups for unknown contact ids.
var ErrNotFound = sentinel.ErrNotFound
