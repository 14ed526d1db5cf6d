package lockout

import (
	"context"
	"time"
)

// Store persists per-identity failure state. Increment must be atomic: two
// concurrent failures for the same identity must serialize, never both read
// the same count. A classic check-then-act split here would let N parallel
// attempts bypass the limit.
type Store interface {
	// Get returns the current state, or nil if the identity has never
	// failed. Absence is not an error.
	Get(ctx context.Context, identity string) (*State, error)

	// Increment atomically adds one failure. If more than window has passed
	// since WindowStartedAt, the count restarts at 1 with a fresh window.
	// Returns the post-increment state.
	Increment(ctx context.Context, identity string, now time.Time, window time.Duration) (*State, error)

	// Lock marks the identity locked until the given time.
	Lock(ctx context.Context, identity string, until time.Time) error

	// Clear removes all failure state for the identity.
	Clear(ctx context.Context, identity string) error
}
