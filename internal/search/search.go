// Package search implements 1:N identification: compare one probe capture
// against every enrolled embedding and return the nearest candidates. Search
// issues no credentials and never touches lockout state; it only ranks.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"faceguard/internal/audit"
	"faceguard/internal/capture"
	"faceguard/internal/embedding"
	"faceguard/internal/enrollment"
	"faceguard/internal/quality"
	"faceguard/internal/search/metrics"
	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/platform/sentinel"
	"faceguard/pkg/requestcontext"
)

// Candidate is one ranked hit from a 1:N scan.
type Candidate struct {
	Identity string  `json:"identity"`
	Role     string  `json:"role"`
	Distance float64 `json:"distance"`
}

// Recorder is the audit port this service needs.
type Recorder interface {
	Record(ctx context.Context, event audit.Event)
}

// Service runs the linear scan over the enrollment store. The scan is a
// point-in-time snapshot; enrollments landing mid-scan are simply not seen.
type Service struct {
	store     enrollment.Store
	gate      *quality.Gate
	extractor capture.Extractor
	analyzer  capture.Analyzer
	maxK      int
	recorder  Recorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
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

func New(store enrollment.Store, gate *quality.Gate, extractor capture.Extractor, analyzer capture.Analyzer, maxK int, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("enrollment store is required")
	}
	svc := &Service{
		store:     store,
		gate:      gate,
		extractor: extractor,
		analyzer:  analyzer,
		maxK:      maxK,
		recorder:  nil,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Search extracts an embedding from the probe image and returns up to k
// candidates ordered by ascending distance, ties broken by identity. An
// empty store yields an empty result, not an error.
func (s *Service) Search(ctx context.Context, image []byte, k int) ([]Candidate, error) {
	if k < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "k must be at least 1")
	}
	if k > s.maxK {
		k = s.maxK
	}

	started := time.Now()

	captureMetrics, err := s.analyzer.Metrics(ctx, image)
	if err != nil {
		return nil, translateCaptureErr(err)
	}
	if gate := s.gate.Evaluate(captureMetrics.Blur, captureMetrics.Brightness); !gate.Passed {
		return nil, dErrors.New(dErrors.CodeBadRequest, "capture rejected: "+gate.Reason)
	}

	probe, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return nil, translateCaptureErr(err)
	}

	records, err := s.store.All(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan enrollments")
	}

	candidates := make([]Candidate, 0, len(records))
	for _, record := range records {
		distance, err := embedding.CosineDistance(probe, record.Embedding)
		if err != nil {
			// A malformed stored embedding should not sink the whole scan.
			s.logger.WarnContext(ctx, "skipping enrollment during scan",
				"identity", record.Identity, "error", err)
			continue
		}
		candidates = append(candidates, Candidate{
			Identity: record.Identity,
			Role:     record.Role,
			Distance: distance,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Identity < candidates[j].Identity
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	s.metrics.ObserveScan(time.Since(started), len(records))
	s.record(ctx, audit.Event{
		Type:     audit.EventSearch,
		Identity: requestcontext.Subject(ctx),
		Outcome:  audit.OutcomeSuccess,
		Detail: map[string]any{
			"k":        k,
			"returned": len(candidates),
			"scanned":  len(records),
		},
	})

	return candidates, nil
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
	case errors.Is(err, capture.ErrNoFaceFound), errors.Is(err, capture.ErrMultipleFaces), errors.Is(err, capture.ErrExtractFailed):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "could not process probe capture")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "capture processing failed")
	}
}
