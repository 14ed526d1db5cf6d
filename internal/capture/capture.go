// Package capture defines the ports to the external image-processing
// collaborators: embedding extraction, quality metrics, and the two-frame
// motion signal. The decision core never touches pixels; it consumes these
// capabilities behind interfaces so the heavy vision stack stays out of
// process.
package capture

import (
	"context"
	"errors"

	"faceguard/internal/embedding"
)

// Extraction failure kinds. These surface to the caller as capture problems,
// distinct from match or liveness outcomes.
var (
	ErrNoFaceFound   = errors.New("capture: no face found")
	ErrMultipleFaces = errors.New("capture: multiple faces found")
	ErrExtractFailed = errors.New("capture: extraction failed")
)

// Metrics are the pixel-level quality measurements for one frame.
type Metrics struct {
	Blur       float64
	Brightness float64
}

// Extractor turns image bytes into a fixed-length embedding.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (embedding.Vector, error)
}

// Analyzer computes quality metrics for one frame.
type Analyzer interface {
	Metrics(ctx context.Context, image []byte) (Metrics, error)
}

// MotionEstimator computes the scalar displacement magnitude between two
// sequential frames of the same subject.
type MotionEstimator interface {
	Motion(ctx context.Context, frame1, frame2 []byte) (float64, error)
}

// Processor bundles the three capabilities, which in practice are served by
// the same extraction service.
type Processor interface {
	Extractor
	Analyzer
	MotionEstimator
}
