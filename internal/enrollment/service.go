package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"faceguard/internal/audit"
	"faceguard/internal/capture"
	"faceguard/internal/policy"
	"faceguard/internal/quality"
	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/platform/sentinel"
	"faceguard/pkg/requestcontext"
)

// Recorder is the audit port this service needs.
type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Service owns the enrollment write path: quality gate, embedding
// extraction, dimension check, then a last-write-wins store put. The first
// enrollment creates the identity with the default role; re-enrollment
// replaces the embedding and keeps the role.
type Service struct {
	store     Store
	gate      *quality.Gate
	extractor capture.Extractor
	analyzer  capture.Analyzer
	dimension int
	recorder  Recorder
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func New(store Store, gate *quality.Gate, extractor capture.Extractor, analyzer capture.Analyzer, dimension int, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("enrollment store is required")
	}
	svc := &Service{
		store:     store,
		gate:      gate,
		extractor: extractor,
		analyzer:  analyzer,
		dimension: dimension,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Enroll captures one image for the identity. Returns the stored record or
// a coded error describing why the capture was rejected.
func (s *Service) Enroll(ctx context.Context, identity string, image []byte) (*Record, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	metrics, err := s.analyzer.Metrics(ctx, image)
	if err != nil {
		return nil, translateCaptureErr(err)
	}

	if gate := s.gate.Evaluate(metrics.Blur, metrics.Brightness); !gate.Passed {
		s.record(ctx, audit.Event{
			Type:     audit.EventEnrollRejected,
			Identity: identity,
			Outcome:  audit.OutcomeDenied,
			Detail: map[string]any{
				"reason":     gate.Reason,
				"blur":       gate.BlurScore,
				"brightness": gate.BrightnessScore,
			},
		})
		return nil, dErrors.New(dErrors.CodeBadRequest, "capture rejected: "+gate.Reason)
	}

	vector, err := s.extractor.Extract(ctx, image)
	if err != nil {
		s.record(ctx, audit.Event{
			Type:     audit.EventEnrollRejected,
			Identity: identity,
			Outcome:  audit.OutcomeError,
			Detail:   map[string]any{"error": err.Error()},
		})
		return nil, translateCaptureErr(err)
	}

	if len(vector) != s.dimension {
		// The extraction service is misconfigured, not the caller.
		return nil, dErrors.Newf(dErrors.CodeInternal,
			"extraction returned %d-dimensional embedding, expected %d", len(vector), s.dimension)
	}
	if vector.IsZero() {
		return nil, dErrors.New(dErrors.CodeInternal, "extraction returned a zero embedding")
	}

	record := Record{
		Identity:  identity,
		Embedding: vector,
		Role:      policy.DefaultRole.String(),
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Put(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store enrollment")
	}

	stored, err := s.store.Get(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read back enrollment")
	}

	s.logger.InfoContext(ctx, "identity enrolled",
		"identity", identity,
		"embedding_fingerprint", vector.Fingerprint(),
	)
	s.record(ctx, audit.Event{
		Type:     audit.EventEnrollSuccess,
		Identity: identity,
		Outcome:  audit.OutcomeSuccess,
		Detail:   map[string]any{"embedding_fingerprint": vector.Fingerprint()},
	})

	return stored, nil
}

// SetRole changes an identity's role. Admin-only; the transport layer
// enforces that, this service just validates and applies.
func (s *Service) SetRole(ctx context.Context, actor, identity, role string) error {
	identity = NormalizeIdentity(identity)
	parsed, ok := policy.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid role %q", role)
	}

	if err := s.store.SetRole(ctx, identity, parsed.String()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set role")
	}

	s.record(ctx, audit.Event{
		Type:     audit.EventRoleChanged,
		Identity: identity,
		Outcome:  audit.OutcomeSuccess,
		Detail:   map[string]any{"role": parsed.String(), "actor": actor},
	})
	return nil
}

// Get exposes the store read for other services.
func (s *Service) Get(ctx context.Context, identity string) (*Record, error) {
	return s.store.Get(ctx, NormalizeIdentity(identity))
}

// NormalizeIdentity canonicalizes a claimed username.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.recorder != nil {
		s.recorder.Record(ctx, event)
	}
}

func translateCaptureErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "extraction service timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "extraction service unavailable")
	case errors.Is(err, capture.ErrNoFaceFound):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "no face found in capture")
	case errors.Is(err, capture.ErrMultipleFaces):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "expected exactly one face")
	case errors.Is(err, capture.ErrExtractFailed):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "could not extract a face embedding")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "capture processing failed")
	}
}
