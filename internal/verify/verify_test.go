package verify

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"faceguard/internal/audit"
	"faceguard/internal/capture"
	"faceguard/internal/embedding"
	"faceguard/internal/enrollment"
	"faceguard/internal/liveness"
	"faceguard/internal/lockout"
	"faceguard/internal/match"
	"faceguard/internal/quality"
	"faceguard/internal/token"
	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/platform/sentinel"
	"faceguard/pkg/requestcontext"
)

type fakeProcessor struct {
	embeddings map[string]embedding.Vector
	metrics    capture.Metrics
	motion     float64
	extractErr error
	motionErr  error
}

func (p *fakeProcessor) Extract(_ context.Context, frame []byte) (embedding.Vector, error) {
	if p.extractErr != nil {
		return nil, p.extractErr
	}
	vector, ok := p.embeddings[string(frame)]
	if !ok {
		return nil, fmt.Errorf("no embedding stubbed for frame %q", frame)
	}
	return vector.Clone(), nil
}

func (p *fakeProcessor) Metrics(context.Context, []byte) (capture.Metrics, error) {
	return p.metrics, nil
}

func (p *fakeProcessor) Motion(context.Context, []byte, []byte) (float64, error) {
	if p.motionErr != nil {
		return 0, p.motionErr
	}
	return p.motion, nil
}

type capturingRecorder struct {
	events []audit.Event
}

func (r *capturingRecorder) Record(_ context.Context, event audit.Event) {
	r.events = append(r.events, event)
}

func (r *capturingRecorder) last() audit.Event {
	return r.events[len(r.events)-1]
}

// atDistance returns a unit vector at the given cosine distance from (1,0,0,0).
func atDistance(distance float64) embedding.Vector {
	sim := 1 - distance
	var y float64
	if r := 1 - sim*sim; r > 0 {
		y = math.Sqrt(r)
	}
	return embedding.Vector{sim, y, 0, 0}
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	store     *enrollment.InMemoryStore
	lockStore *lockout.InMemoryStore
	processor *fakeProcessor
	recorder  *capturingRecorder
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = enrollment.NewInMemoryStore()
	s.lockStore = lockout.NewInMemoryStore()
	s.processor = &fakeProcessor{
		embeddings: map[string]embedding.Vector{
			"same": {1, 0, 0, 0},
			"far":  atDistance(0.9),
		},
		metrics: capture.Metrics{Blur: 120, Brightness: 128},
		motion:  0.12,
	}
	s.recorder = &capturingRecorder{}

	lockoutSvc, err := lockout.New(s.lockStore, 5, time.Minute, time.Minute,
		lockout.WithRecorder(s.recorder))
	s.Require().NoError(err)

	s.svc, err = New(
		s.store,
		quality.NewGate(45, 40, 220),
		s.processor,
		match.New(0.6),
		liveness.New(0.05, 0.5),
		lockoutSvc,
		token.New("test-signing-key", time.Hour),
		4,
		WithRecorder(s.recorder),
	)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Put(s.ctx, enrollment.Record{
		Identity:  "alice",
		Embedding: embedding.Vector{1, 0, 0, 0},
		Role:      "user",
	}))
}

func (s *ServiceSuite) verify(identity string, frame string) *Decision {
	decision, err := s.svc.Verify(s.ctx, identity, []byte(frame), []byte(frame))
	s.Require().NoError(err)
	return decision
}

func (s *ServiceSuite) TestAuthenticated() {
	decision := s.verify("alice", "same")

	s.True(decision.Authenticated)
	s.Empty(decision.Reason)
	s.Require().NotNil(decision.Credential)
	s.Equal("alice", decision.Credential.Subject)
	s.Equal("user", decision.Credential.Role)
	s.Equal(s.now.Add(time.Hour), decision.Credential.ExpiresAt)
	s.True(decision.LivenessPass)
	s.InDelta(0.12, decision.MotionScore, 1e-9)
	s.InDelta(0, decision.Distance, 1e-9)

	s.Equal(audit.EventVerifySuccess, s.recorder.last().Type)
}

func (s *ServiceSuite) TestMatchFailIncrementsFailureCount() {
	decision := s.verify("alice", "far")

	s.False(decision.Authenticated)
	s.Equal(ReasonMatchFail, decision.Reason)
	s.Nil(decision.Credential)
	s.InDelta(0.9, decision.Distance, 1e-9)
	s.Equal(1, decision.FailureCount)

	s.Equal(audit.EventVerifyDenied, s.recorder.last().Type)
	s.Equal("match_and_liveness", s.recorder.last().Detail["stage"])
}

func (s *ServiceSuite) TestLivenessFail() {
	s.processor.motion = 0.01

	decision := s.verify("alice", "same")

	s.False(decision.Authenticated)
	s.Equal(ReasonLivenessFail, decision.Reason)
	s.False(decision.LivenessPass)
	s.Equal(1, decision.FailureCount, "liveness failure counts toward lockout")
}

func (s *ServiceSuite) TestQualityFailSkipsLockout() {
	s.processor.metrics = capture.Metrics{Blur: 10, Brightness: 128}

	decision := s.verify("alice", "same")

	s.False(decision.Authenticated)
	s.Equal(ReasonQualityFail, decision.Reason)
	s.Zero(decision.FailureCount)

	state, err := s.lockStore.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Nil(state, "rejected captures must not count toward lockout")
}

func (s *ServiceSuite) TestUnknownIdentityLooksLikeMatchFail() {
	decision := s.verify("ghost", "far")

	s.False(decision.Authenticated)
	s.Equal(ReasonMatchFail, decision.Reason)
	s.Equal(1, decision.FailureCount, "probing unknown accounts is throttled too")

	s.Equal("unknown_identity", s.recorder.last().Detail["stage"])
}

func (s *ServiceSuite) TestLockoutAfterFiveFailures() {
	for i := 1; i <= 5; i++ {
		decision := s.verify("alice", "far")
		s.Equal(ReasonMatchFail, decision.Reason)
		s.Equal(i, decision.FailureCount)
	}

	decision := s.verify("alice", "far")
	s.Equal(ReasonLocked, decision.Reason)
	s.Positive(decision.RetryAfter)
	s.Equal(audit.EventLockoutBlock, s.recorder.last().Type)

	// A correct capture is still rejected while locked.
	decision = s.verify("alice", "same")
	s.Equal(ReasonLocked, decision.Reason)
}

func (s *ServiceSuite) TestSuccessResetsFailures() {
	s.verify("alice", "far")
	s.verify("alice", "far")

	decision := s.verify("alice", "same")
	s.True(decision.Authenticated)

	state, err := s.lockStore.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Nil(state)
}

func (s *ServiceSuite) TestExtractionTimeout() {
	s.processor.extractErr = fmt.Errorf("extract: %w", sentinel.ErrTimeout)

	_, err := s.svc.Verify(s.ctx, "alice", []byte("same"), []byte("same"))
	s.True(dErrors.IsCode(err, dErrors.CodeTimeout))
}

func (s *ServiceSuite) TestMotionUnavailable() {
	s.processor.motionErr = fmt.Errorf("motion: %w", sentinel.ErrUnavailable)

	_, err := s.svc.Verify(s.ctx, "alice", []byte("same"), []byte("same"))
	s.True(dErrors.IsCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestEmptyIdentity() {
	_, err := s.svc.Verify(s.ctx, "", []byte("same"), []byte("same"))
	s.True(dErrors.IsCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestSpansCoverPipelineStages() {
	recorder := tracetest.NewSpanRecorder()
	WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))(s.svc)

	decision := s.verify("alice", "same")
	s.True(decision.Authenticated)

	names := make([]string, 0, len(recorder.Ended()))
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	s.Contains(names, "verify.Verify")
	s.Contains(names, "verify.quality_check")
	s.Contains(names, "verify.lockout_check")
	s.Contains(names, "verify.match_and_liveness")

	// Stage spans nest under the pipeline span.
	for _, span := range recorder.Ended() {
		if span.Name() == "verify.quality_check" {
			s.True(span.Parent().IsValid())
		}
	}
}
