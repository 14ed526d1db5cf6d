package enrollment

import (
	"context"
	"fmt"
	"sync"

	"faceguard/pkg/platform/sentinel"
)

// InMemoryStore keeps enrollments in a mutex-guarded map. The write path is
// exclusive so a concurrent re-enrollment cannot interleave with a role
// update; reads copy records out so callers never alias store-owned vectors.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Put(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := record
	stored.Embedding = record.Embedding.Clone()
	if prior, ok := s.records[record.Identity]; ok && prior.Role != "" {
		stored.Role = prior.Role
	}
	s.records[record.Identity] = stored
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, identity string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[identity]
	if !ok {
		return nil, fmt.Errorf("enrollment %q: %w", identity, sentinel.ErrNotFound)
	}
	out := record
	out.Embedding = record.Embedding.Clone()
	return &out, nil
}

func (s *InMemoryStore) All(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		copied := record
		copied.Embedding = record.Embedding.Clone()
		out = append(out, copied)
	}
	return out, nil
}

func (s *InMemoryStore) SetRole(_ context.Context, identity, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identity]
	if !ok {
		return fmt.Errorf("enrollment %q: %w", identity, sentinel.ErrNotFound)
	}
	record.Role = role
	s.records[identity] = record
	return nil
}
