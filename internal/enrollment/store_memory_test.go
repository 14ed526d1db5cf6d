package enrollment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"faceguard/internal/embedding"
	"faceguard/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) TestPutAndGet() {
	err := s.store.Put(s.ctx, Record{
		Identity:  "alice",
		Embedding: embedding.Vector{1, 0, 0},
		Role:      "user",
	})
	s.Require().NoError(err)

	got, err := s.store.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", got.Identity)
	s.Equal(embedding.Vector{1, 0, 0}, got.Embedding)
	s.Equal("user", got.Role)
}

func (s *InMemoryStoreSuite) TestGetUnknownIdentity() {
	_, err := s.store.Get(s.ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestReEnrollmentReplacesEmbeddingKeepsRole() {
	s.Require().NoError(s.store.Put(s.ctx, Record{
		Identity:  "rob",
		Embedding: embedding.Vector{1, 0, 0},
		Role:      "user",
	}))
	s.Require().NoError(s.store.SetRole(s.ctx, "rob", "admin"))

	// Second enrollment arrives with the default role again.
	s.Require().NoError(s.store.Put(s.ctx, Record{
		Identity:  "rob",
		Embedding: embedding.Vector{0, 1, 0},
		Role:      "user",
	}))

	got, err := s.store.Get(s.ctx, "rob")
	s.Require().NoError(err)
	s.Equal(embedding.Vector{0, 1, 0}, got.Embedding, "embedding should be replaced")
	s.Equal("admin", got.Role, "role should survive re-enrollment")

	all, err := s.store.All(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1, "re-enrollment must not create a second record")
}

func (s *InMemoryStoreSuite) TestSetRoleUnknownIdentity() {
	err := s.store.SetRole(s.ctx, "nobody", "admin")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestGetReturnsCopy() {
	s.Require().NoError(s.store.Put(s.ctx, Record{
		Identity:  "alice",
		Embedding: embedding.Vector{1, 0, 0},
		Role:      "user",
	}))

	got, err := s.store.Get(s.ctx, "alice")
	s.Require().NoError(err)
	got.Embedding[0] = 99

	again, err := s.store.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(embedding.Vector{1, 0, 0}, again.Embedding)
}

func (s *InMemoryStoreSuite) TestAllSnapshot() {
	s.Require().NoError(s.store.Put(s.ctx, Record{Identity: "a", Embedding: embedding.Vector{1}, Role: "user"}))
	s.Require().NoError(s.store.Put(s.ctx, Record{Identity: "b", Embedding: embedding.Vector{2}, Role: "user"}))

	all, err := s.store.All(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}
