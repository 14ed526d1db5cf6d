package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	e := New(0.05, 0.5)

	tests := []struct {
		name   string
		motion float64
		passed bool
	}{
		{"motion within band passes", 0.12, true},
		{"static frame pair fails", 0.0, false},
		{"barely below band fails", 0.049, false},
		{"lower bound passes", 0.05, true},
		{"upper bound passes", 0.5, true},
		{"erratic motion fails", 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(tt.motion)
			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, tt.motion, result.MotionScore)
		})
	}
}
