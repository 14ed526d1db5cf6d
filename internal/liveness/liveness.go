// Package liveness evaluates a two-frame motion heuristic.
//
// The motion signal is the pixel-displacement magnitude between two
// sequential captures, computed by the external image-analysis service. A
// near-zero signal suggests a static or replayed photo; an implausibly large
// one suggests noise or two unrelated frames. This is explicitly a heuristic,
// not a cryptographic liveness guarantee: treat it as one signal among
// several, never sufficient alone. The Evaluator interface in the verify
// package exists so a stronger signal (e.g. challenge-response) can replace
// this one without touching orchestration.
package liveness

// Result is the transient outcome of a liveness evaluation.
type Result struct {
	MotionScore float64
	Passed      bool
}

// Evaluator accepts motion scores within [min, max].
type Evaluator struct {
	min float64
	max float64
}

// New builds an evaluator with the accepted motion band.
func New(min, max float64) *Evaluator {
	return &Evaluator{min: min, max: max}
}

// Evaluate passes iff the motion signal falls within the accepted band,
// inclusive at both ends.
func (e *Evaluator) Evaluate(motion float64) Result {
	return Result{
		MotionScore: motion,
		Passed:      motion >= e.min && motion <= e.max,
	}
}
