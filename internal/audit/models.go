// Package audit provides the append-only trail of decision-path events.
// Events are emitted from domain logic and kept transport-agnostic so stores
// and publishers can fan out.
package audit

import (
	"time"
)

// EventType names the actions the core records.
type EventType string

const (
	EventEnrollSuccess    EventType = "enroll_success"
	EventEnrollRejected   EventType = "enroll_rejected"
	EventVerifySuccess    EventType = "verify_success"
	EventVerifyDenied     EventType = "verify_denied"
	EventLockoutBlock     EventType = "lockout_block"
	EventLockoutTriggered EventType = "lockout_triggered"
	EventLockoutCleared   EventType = "lockout_cleared"
	EventSearch           EventType = "search"
	EventRoleChanged      EventType = "role_changed"
	EventEventsViewed     EventType = "events_viewed"
)

// Outcome classifies how the recorded operation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeBlocked Outcome = "blocked"
	OutcomeError   Outcome = "error"
)

// Event is one append-only audit record. Events are immutable once written
// and total-ordered by timestamp per identity. Detail carries diagnostic
// key/values (scores, reasons, device summaries) but never raw biometric
// data; embeddings are referenced by fingerprint only.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Identity  string         `json:"identity,omitempty"`
	Outcome   Outcome        `json:"outcome"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Filter narrows a privileged audit query. Zero values mean "any".
type Filter struct {
	Identity string
	Type     EventType
	Since    time.Time
	Until    time.Time
	Limit    int
}
