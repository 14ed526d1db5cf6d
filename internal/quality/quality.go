// Package quality screens captures before any matching work. The blur and
// brightness metrics are computed by the external image-analysis service;
// this gate only applies configured thresholds, so it stays deterministic
// and cheap to test.
package quality

// Result is the transient outcome of a capture quality check. Never
// persisted.
type Result struct {
	BlurScore       float64
	BrightnessScore float64
	Passed          bool
	Reason          string
}

// Reasons a capture can fail the gate.
const (
	ReasonTooBlurry = "image_too_blurry"
	ReasonTooDark   = "image_too_dark"
	ReasonTooBright = "image_too_bright"
)

// Gate holds the configured thresholds.
type Gate struct {
	blurFloor     float64
	brightnessMin float64
	brightnessMax float64
}

// NewGate builds a quality gate. blurFloor is the minimum sharpness
// (variance-of-Laplacian scale); the brightness band is [min, max] in mean
// pixel value.
func NewGate(blurFloor, brightnessMin, brightnessMax float64) *Gate {
	return &Gate{
		blurFloor:     blurFloor,
		brightnessMin: brightnessMin,
		brightnessMax: brightnessMax,
	}
}

// Evaluate applies the thresholds. Brightness is checked first so a dark or
// blown-out frame reports the lighting problem rather than the blur that
// usually accompanies it.
func (g *Gate) Evaluate(blur, brightness float64) Result {
	result := Result{BlurScore: blur, BrightnessScore: brightness}

	switch {
	case brightness < g.brightnessMin:
		result.Reason = ReasonTooDark
	case brightness > g.brightnessMax:
		result.Reason = ReasonTooBright
	case blur < g.blurFloor:
		result.Reason = ReasonTooBlurry
	default:
		result.Passed = true
	}

	return result
}
