package lockout

import (
	"strings"
	"time"
)

// State is the per-identity brute-force counter. It exists for identities
// that were never enrolled, so repeated probing of unknown usernames is
// throttled the same way as real accounts. Its lifecycle is independent of
// enrollment.
type State struct {
	Identity        string
	FailureCount    int
	WindowStartedAt time.Time
	LockedUntil     *time.Time
}

// IsLockedAt reports whether the identity is hard-locked at the given time.
func (s *State) IsLockedAt(now time.Time) bool {
	return s != nil && s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// RemainingLock returns how long the lock still holds at the given time.
func (s *State) RemainingLock(now time.Time) time.Duration {
	if !s.IsLockedAt(now) {
		return 0
	}
	return s.LockedUntil.Sub(now)
}

// SanitizeKey escapes delimiter characters in identity-derived store keys so
// a crafted username containing ':' cannot collide with adjacent buckets.
func SanitizeKey(identity string) string {
	return strings.ReplaceAll(identity, ":", "_")
}
