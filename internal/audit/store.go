package audit

import "context"

// Store persists audit events. Append-only: nothing in the core mutates or
// deletes a written event.
type Store interface {
	Append(ctx context.Context, event Event) error

	// Query returns events matching the filter, ordered by timestamp
	// ascending. Used by privileged read paths only.
	Query(ctx context.Context, filter Filter) ([]Event, error)
}
