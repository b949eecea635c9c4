package catalog

import "github.com/cockroachdb/errors"

// ErrUserNotFound is returned when an identifier resolves to no user.
// Surfaces to callers as a client error.
var ErrUserNotFound = errors.New("user not found")

// ErrStoreUnavailable is returned when the backing store cannot be
// reached or a query fails. Surfaces to callers as a retryable error.
var ErrStoreUnavailable = errors.New("store unavailable")
