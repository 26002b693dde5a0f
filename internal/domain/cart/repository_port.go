package cart

import (
	"context"
	"time"
)

// MutateFunc derives the next cart state from the current one.
// current is nil when the owner has no cart yet.
// Returning an error aborts the operation without writing; returning a cart
// that is not Changed() skips the write.
type MutateFunc func(current *Cart) (*Cart, error)

// MergeFunc derives the merged cart from the guest and user carts (either may be nil).
// The result is stored under its own owner key.
type MergeFunc func(guest, user *Cart) (*Cart, error)

// Repository is the cart persistence port.
//
// Storage layout:
//   - one record per owner key ("user:<userId>" / "guest:<sessionId>")
//   - at most one cart per userId and per sessionId
//
// Concurrency:
//   - Mutate is an atomic read-modify-write scoped to one owner key;
//     callers for the same owner are serialized, other owners are not blocked
//   - Merge is the only operation touching two owner keys, and applies as one unit
type Repository interface {
	// GetByOwner returns (nil, nil) if not found.
	GetByOwner(ctx context.Context, owner Owner) (*Cart, error)

	// Mutate runs fn against the current cart under the owner's lock and writes
	// the result if it changed. The returned cart reflects what is stored.
	Mutate(ctx context.Context, owner Owner, fn MutateFunc) (*Cart, error)

	// Merge reads the guest cart (sessionID) and the user cart (userID), runs fn,
	// writes the result and deletes the guest record if one existed and the
	// result is not that same record.
	Merge(ctx context.Context, userID, sessionID string, fn MergeFunc) (*Cart, error)

	// DeleteByOwner removes the record. Deleting a missing record is not an error.
	DeleteByOwner(ctx context.Context, owner Owner) error

	// SweepExpired deletes guest carts whose ExpiresAt <= now and returns the count.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}
