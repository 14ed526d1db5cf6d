package lockout

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps failure state in a mutex-guarded map. The mutex makes
// Increment a single atomic step, which is all the synchronization the
// single-node policy needs.
type InMemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]*State)}
}

func (s *InMemoryStore) Get(_ context.Context, identity string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[SanitizeKey(identity)]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) Increment(_ context.Context, identity string, now time.Time, window time.Duration) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SanitizeKey(identity)
	state, ok := s.states[key]
	if !ok || now.Sub(state.WindowStartedAt) > window {
		state = &State{Identity: identity, WindowStartedAt: now}
		s.states[key] = state
	}
	state.FailureCount++

	copied := *state
	return &copied, nil
}

func (s *InMemoryStore) Lock(_ context.Context, identity string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SanitizeKey(identity)
	state, ok := s.states[key]
	if !ok {
		state = &State{Identity: identity, WindowStartedAt: until}
		s.states[key] = state
	}
	state.LockedUntil = &until
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, SanitizeKey(identity))
	return nil
}
