package enrollment

import (
	"context"
)

// Store persists enrollments. Writes are last-write-wins; Get returns
// sentinel.ErrNotFound (wrapped) for unknown identities; All returns a
// snapshot safe to iterate while concurrent writes land.
type Store interface {
	// Put replaces any prior enrollment for the identity. The role argument
	// is applied only on first enrollment; re-enrollment preserves the
	// existing role.
	Put(ctx context.Context, record Record) error

	// Get returns the current enrollment for an identity.
	Get(ctx context.Context, identity string) (*Record, error)

	// All returns a point-in-time snapshot of every enrollment for 1:N scan.
	All(ctx context.Context) ([]Record, error)

	// SetRole updates an identity's role. Returns sentinel.ErrNotFound if
	// the identity has no enrollment.
	SetRole(ctx context.Context, identity, role string) error
}
