package search

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"faceguard/internal/capture"
	"faceguard/internal/embedding"
	"faceguard/internal/enrollment"
	"faceguard/internal/quality"
	dErrors "faceguard/pkg/domain-errors"
)

type stubProcessor struct {
	vector  embedding.Vector
	metrics capture.Metrics
	err     error
}

func (p *stubProcessor) Extract(context.Context, []byte) (embedding.Vector, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.vector.Clone(), nil
}

func (p *stubProcessor) Metrics(context.Context, []byte) (capture.Metrics, error) {
	return p.metrics, nil
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *enrollment.InMemoryStore
	processor *stubProcessor
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = enrollment.NewInMemoryStore()
	s.processor = &stubProcessor{
		vector:  embedding.Vector{1, 0},
		metrics: capture.Metrics{Blur: 120, Brightness: 128},
	}

	var err error
	s.svc, err = New(s.store, quality.NewGate(45, 40, 220), s.processor, s.processor, 25)
	s.Require().NoError(err)
}

// enroll stores an identity whose embedding sits at the given cosine
// distance from the probe (1, 0).
func (s *ServiceSuite) enroll(identity string, distance float64) {
	// cos sim = 1 - distance; pick (sim, sqrt(1-sim^2)) on the unit circle.
	sim := 1 - distance
	var y float64
	if r := 1 - sim*sim; r > 0 {
		y = math.Sqrt(r)
	}
	s.Require().NoError(s.store.Put(s.ctx, enrollment.Record{
		Identity:  identity,
		Embedding: embedding.Vector{sim, y},
		Role:      "user",
	}))
}

func (s *ServiceSuite) TestTopKOrdering() {
	s.enroll("beth", 0.1)
	s.enroll("carol", 0.3)
	s.enroll("anna", 0.05)

	got, err := s.svc.Search(s.ctx, []byte("probe"), 2)
	s.Require().NoError(err)

	s.Require().Len(got, 2)
	s.Equal("anna", got[0].Identity)
	s.InDelta(0.05, got[0].Distance, 1e-9)
	s.Equal("beth", got[1].Identity)
	s.InDelta(0.1, got[1].Distance, 1e-9)
}

func (s *ServiceSuite) TestTieBrokenByIdentity() {
	s.enroll("zed", 0.2)
	s.enroll("amy", 0.2)

	got, err := s.svc.Search(s.ctx, []byte("probe"), 2)
	s.Require().NoError(err)

	s.Require().Len(got, 2)
	s.Equal("amy", got[0].Identity)
	s.Equal("zed", got[1].Identity)
}

func (s *ServiceSuite) TestEmptyStore() {
	got, err := s.svc.Search(s.ctx, []byte("probe"), 5)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ServiceSuite) TestKCappedAtMax() {
	var err error
	s.svc, err = New(s.store, quality.NewGate(45, 40, 220), s.processor, s.processor, 2)
	s.Require().NoError(err)

	s.enroll("a", 0.1)
	s.enroll("b", 0.2)
	s.enroll("c", 0.3)

	got, err := s.svc.Search(s.ctx, []byte("probe"), 100)
	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *ServiceSuite) TestKBelowOne() {
	_, err := s.svc.Search(s.ctx, []byte("probe"), 0)
	s.True(dErrors.IsCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestQualityRejected() {
	s.processor.metrics = capture.Metrics{Blur: 5, Brightness: 128}

	_, err := s.svc.Search(s.ctx, []byte("probe"), 5)
	s.True(dErrors.IsCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestNoFaceInProbe() {
	s.processor.err = capture.ErrNoFaceFound

	_, err := s.svc.Search(s.ctx, []byte("probe"), 5)
	s.True(dErrors.IsCode(err, dErrors.CodeBadRequest))
}
