// Package match compares a candidate embedding against a stored enrollment.
package match

import (
	"faceguard/internal/embedding"
)

// Result is the transient outcome of a single comparison. Distance is cosine
// distance in [0,2]; lower means more similar.
type Result struct {
	Distance float64
	Passed   bool
}

// Matcher applies a pass threshold on cosine distance.
type Matcher struct {
	threshold float64
}

// New builds a matcher. The threshold is a tunable; 0.6 is the design
// default for the 128-dimensional extraction model.
func New(threshold float64) *Matcher {
	return &Matcher{threshold: threshold}
}

// Match computes the distance between candidate and stored embeddings.
// Degenerate inputs (zero vectors, mismatched dimensions) surface as errors
// from the embedding package rather than as a low distance.
func (m *Matcher) Match(candidate, stored embedding.Vector) (Result, error) {
	distance, err := embedding.CosineDistance(candidate, stored)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Distance: distance,
		Passed:   distance <= m.threshold,
	}, nil
}

// Threshold exposes the configured cutoff for response contracts.
func (m *Matcher) Threshold() float64 { return m.threshold }
