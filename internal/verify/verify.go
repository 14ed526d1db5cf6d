// Package verify orchestrates the authentication decision: quality gate,
// lockout check, parallel match and liveness, lockout update, audit, and
// credential issuance. It owns no biometric math of its own; it sequences
// the collaborators and turns their outcomes into one decision.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"faceguard/internal/audit"
	"faceguard/internal/capture"
	"faceguard/internal/embedding"
	"faceguard/internal/enrollment"
	"faceguard/internal/liveness"
	"faceguard/internal/lockout"
	"faceguard/internal/match"
	"faceguard/internal/quality"
	"faceguard/internal/token"
	"faceguard/internal/verify/metrics"
	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/platform/middleware/metadata"
	"faceguard/pkg/platform/privacy"
	"faceguard/pkg/platform/sentinel"
	"faceguard/pkg/requestcontext"
)

// Reasons a verification is denied. These are the only values exposed to
// callers; the audited stage can be more specific.
const (
	ReasonQualityFail  = "quality_fail"
	ReasonLocked       = "locked"
	ReasonMatchFail    = "match_fail"
	ReasonLivenessFail = "liveness_fail"
)

// Decision is the outcome of one verification attempt. Reason is empty and
// Credential non-nil iff Authenticated.
type Decision struct {
	Authenticated bool
	Reason        string
	Credential    *token.Credential
	Distance      float64
	Threshold     float64
	MotionScore   float64
	LivenessPass  bool
	FailureCount  int
	RetryAfter    time.Duration
}

// Recorder is the audit port this service needs.
type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Service is the decision engine. It holds a decoy embedding so attempts
// against identities that were never enrolled run the same pipeline as real
// mismatches and come back externally indistinguishable from them.
type Service struct {
	store     enrollment.Store
	gate      *quality.Gate
	processor capture.Processor
	matcher   *match.Matcher
	liveness  *liveness.Evaluator
	lockout   *lockout.Service
	tokens    *token.Service
	decoy     embedding.Vector
	recorder  Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("faceguard/verify") }
}

func New(store enrollment.Store, gate *quality.Gate, processor capture.Processor, matcher *match.Matcher, evaluator *liveness.Evaluator, lockoutSvc *lockout.Service, tokens *token.Service, dimension int, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("enrollment store is required")
	}
	if lockoutSvc == nil {
		return nil, errors.New("lockout service is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}

	// Unit vector along the all-ones diagonal. Probes land at genuinely
	// varying distances from it, so decoy comparisons are not
	// fingerprintable by a constant response.
	decoy := make(embedding.Vector, dimension)
	for i := range decoy {
		decoy[i] = 1 / math.Sqrt(float64(dimension))
	}

	svc := &Service{
		store:     store,
		gate:      gate,
		processor: processor,
		matcher:   matcher,
		liveness:  evaluator,
		lockout:   lockoutSvc,
		tokens:    tokens,
		decoy:     decoy,
		logger:    slog.Default(),
		tracer:    otel.Tracer("faceguard/verify"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Verify runs the full decision pipeline for a claimed identity and two
// sequential frames. A denied attempt returns a Decision with Authenticated
// false, not an error; errors are reserved for invalid input and
// collaborator failures.
func (s *Service) Verify(ctx context.Context, identity string, frame1, frame2 []byte) (*Decision, error) {
	identity = enrollment.NormalizeIdentity(identity)
	if identity == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	ctx, span := s.tracer.Start(ctx, "verify.Verify",
		trace.WithAttributes(attribute.String("identity", identity)))
	defer span.End()

	started := time.Now()
	defer func() {
		s.metrics.ObserveDuration(time.Since(started))
	}()

	// Quality gate on both frames before any lockout or matching work.
	qualityCtx, qualitySpan := s.tracer.Start(ctx, "verify.quality_check")
	for i, frame := range [][]byte{frame1, frame2} {
		capMetrics, err := s.processor.Metrics(qualityCtx, frame)
		if err != nil {
			qualitySpan.End()
			return nil, translateCaptureErr(err)
		}
		if gate := s.gate.Evaluate(capMetrics.Blur, capMetrics.Brightness); !gate.Passed {
			qualitySpan.SetAttributes(attribute.String("reason", gate.Reason))
			qualitySpan.End()
			s.observe("denied", ReasonQualityFail, span)
			return s.deny(ctx, identity, Decision{Reason: ReasonQualityFail}, auditDetail{
				stage:  "quality_check",
				reason: gate.Reason,
				frame:  i + 1,
			}), nil
		}
	}
	qualitySpan.End()

	lockoutCtx, lockoutSpan := s.tracer.Start(ctx, "verify.lockout_check")
	status, err := s.lockout.Check(lockoutCtx, identity)
	lockoutSpan.End()
	if err != nil {
		return nil, err
	}
	if status.Locked {
		// The lockout service already audited the block.
		s.observe("denied", ReasonLocked, span)
		return &Decision{
			Reason:       ReasonLocked,
			FailureCount: status.FailureCount,
			RetryAfter:   status.RetryAfter,
		}, nil
	}

	record, err := s.store.Get(ctx, identity)
	unknown := false
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		// Run the pipeline against the decoy so the attempt costs the
		// same and the response matches a real mismatch.
		unknown = true
		record = &enrollment.Record{Identity: identity, Embedding: s.decoy}
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollment")
	}

	var (
		matched match.Result
		liveRes liveness.Result
	)
	matchCtx, matchSpan := s.tracer.Start(ctx, "verify.match_and_liveness")
	g, gctx := errgroup.WithContext(matchCtx)
	g.Go(func() error {
		res, err := s.matchFrames(gctx, record.Embedding, frame1, frame2)
		if err != nil {
			return err
		}
		matched = res
		return nil
	})
	g.Go(func() error {
		motion, err := s.processor.Motion(gctx, frame1, frame2)
		if err != nil {
			return translateCaptureErr(err)
		}
		liveRes = s.liveness.Evaluate(motion)
		return nil
	})
	if err := g.Wait(); err != nil {
		matchSpan.End()
		return nil, err
	}
	matchSpan.SetAttributes(
		attribute.Float64("distance", matched.Distance),
		attribute.Bool("liveness_pass", liveRes.Passed),
	)
	matchSpan.End()

	decision := Decision{
		Distance:     matched.Distance,
		Threshold:    s.matcher.Threshold(),
		MotionScore:  liveRes.MotionScore,
		LivenessPass: liveRes.Passed,
	}
	matchPassed := matched.Passed && !unknown

	// Lockout update and audit survive a caller that has gone away.
	detached := context.WithoutCancel(ctx)

	if matchPassed && liveRes.Passed {
		if err := s.lockout.RecordSuccess(detached, identity); err != nil {
			s.logger.WarnContext(ctx, "failed to reset lockout state after success",
				"identity", identity, "error", err)
		}
		credential, err := s.tokens.Issue(identity, record.Role, requestcontext.Now(ctx))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue credential")
		}
		decision.Authenticated = true
		decision.Credential = credential

		s.observe("success", "", span)
		s.record(detached, audit.Event{
			Type:     audit.EventVerifySuccess,
			Identity: identity,
			Outcome:  audit.OutcomeSuccess,
			Detail: map[string]any{
				"distance":     matched.Distance,
				"motion_score": liveRes.MotionScore,
				"client_ip":    privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
				"device":       metadata.DeviceSummary(requestcontext.UserAgent(ctx)),
			},
		})
		return &decision, nil
	}

	switch {
	case !matchPassed:
		decision.Reason = ReasonMatchFail
	default:
		decision.Reason = ReasonLivenessFail
	}

	state, err := s.lockout.RecordFailure(detached, identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record verification failure",
			"identity", identity, "error", err)
	} else {
		decision.FailureCount = state.FailureCount
		if state.IsLockedAt(requestcontext.Now(ctx)) {
			decision.RetryAfter = state.RemainingLock(requestcontext.Now(ctx))
		}
	}

	stage := "match_and_liveness"
	if unknown {
		stage = "unknown_identity"
	}
	s.observe("denied", decision.Reason, span)
	return s.deny(detached, identity, decision, auditDetail{
		stage:       stage,
		reason:      decision.Reason,
		distance:    matched.Distance,
		motionScore: liveRes.MotionScore,
	}), nil
}

// matchFrames compares both frames against the stored embedding. Both must
// pass; the reported distance is the worse of the two.
func (s *Service) matchFrames(ctx context.Context, stored embedding.Vector, frames ...[]byte) (match.Result, error) {
	combined := match.Result{Passed: true}
	for _, frame := range frames {
		vector, err := s.processor.Extract(ctx, frame)
		if err != nil {
			return match.Result{}, translateCaptureErr(err)
		}
		res, err := s.matcher.Match(vector, stored)
		if err != nil {
			if errors.Is(err, embedding.ErrZeroVector) || errors.Is(err, embedding.ErrDimensionMismatch) {
				return match.Result{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not compare capture")
			}
			return match.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "comparison failed")
		}
		combined.Passed = combined.Passed && res.Passed
		if res.Distance > combined.Distance {
			combined.Distance = res.Distance
		}
	}
	return combined, nil
}

type auditDetail struct {
	stage       string
	reason      string
	frame       int
	distance    float64
	motionScore float64
}

func (s *Service) deny(ctx context.Context, identity string, decision Decision, d auditDetail) *Decision {
	detail := map[string]any{
		"stage":     d.stage,
		"reason":    d.reason,
		"client_ip": privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		"device":    metadata.DeviceSummary(requestcontext.UserAgent(ctx)),
	}
	if d.frame > 0 {
		detail["frame"] = d.frame
	}
	if d.stage == "match_and_liveness" || d.stage == "unknown_identity" {
		detail["distance"] = d.distance
		detail["motion_score"] = d.motionScore
	}
	s.record(ctx, audit.Event{
		Type:     audit.EventVerifyDenied,
		Identity: identity,
		Outcome:  audit.OutcomeDenied,
		Detail:   detail,
	})
	return &decision
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.recorder != nil {
		s.recorder.Record(ctx, event)
	}
}

func (s *Service) observe(outcome, reason string, span trace.Span) {
	s.metrics.ObserveDecision(outcome, reason)
	if span != nil {
		span.SetAttributes(
			attribute.String("verify.outcome", outcome),
			attribute.String("verify.reason", reason),
		)
	}
}

func translateCaptureErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "extraction service timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "extraction service unavailable")
	case errors.Is(err, capture.ErrNoFaceFound), errors.Is(err, capture.ErrMultipleFaces), errors.Is(err, capture.ErrExtractFailed):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "could not process capture")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "capture processing failed")
	}
}
