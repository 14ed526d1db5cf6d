// Package embedding defines the face embedding vector type and the distance
// metric shared by the matcher and the 1:N search. Both must use exactly the
// same metric so a future index swap cannot change ranking semantics.
package embedding

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"

	"golang.org/x/crypto/blake2b"
)

// Vector is a fixed-length face embedding produced by the external
// extraction service. The dimension is set by that service (128 for the
// default model) and enforced at the enrollment store boundary.
type Vector []float64

// ErrZeroVector reports a degenerate embedding with no direction. A zero
// vector is a configuration or data error upstream, never a legitimate
// capture, so distance computations fail fast instead of reporting a
// misleading similarity.
var ErrZeroVector = errors.New("embedding: zero vector has no direction")

// ErrDimensionMismatch reports two embeddings of different lengths, which
// means they came from different extraction models.
var ErrDimensionMismatch = errors.New("embedding: dimension mismatch")

// CosineDistance returns 1 - cosine similarity, a dissimilarity metric in
// [0,2] where 0 means identical direction.
func CosineDistance(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}

	dist := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	// Guard against float drift outside the metric's range.
	return math.Max(0, math.Min(2, dist)), nil
}

// Clone returns an independent copy so stored vectors cannot be mutated
// through a retained slice.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Fingerprint returns a short blake2b-256 digest of the vector. Audit records
// reference embeddings by fingerprint so raw biometric data never reaches the
// log pipeline.
func (v Vector) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	buf := make([]byte, 8)
	for _, x := range v {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(x))
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
