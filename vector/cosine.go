// Package vector provides the numeric helpers and the similarity index used
// for embedding-based recommendations.
package vector

import (
	"fmt"
	"math"

	"github.com/hubenschmidt/go-shelf/core"
)

// ArityError reports two vectors of different dimensionality.
type ArityError struct {
	Left, Right int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("vector arity mismatch: %d != %d", e.Left, e.Right)
}

func (e *ArityError) Is(target error) bool {
	return target == core.ErrArityMismatch
}

// Dot returns the sum of elementwise products. Vectors must have equal length.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &ArityError{Left: len(a), Right: len(b)}
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Norm returns the Euclidean norm.
func Norm(a []float64) float64 {
	var sum float64
	for _, x := range a {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). It returns exactly 0 when
// either vector is empty or has zero norm. The result is not clamped.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	dot, err := Dot(a, b)
	if err != nil {
		return 0, err
	}
	denom := Norm(a) * Norm(b)
	if denom == 0 {
		return 0, nil
	}
	return dot / denom, nil
}

// Normalize normalizes a vector to unit length.
func Normalize(v []float64) []float64 {
	norm := Norm(v)
	if norm == 0 {
		return v
	}

	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = x / norm
	}
	return result
}

// Mean returns the per-dimension arithmetic mean. All vectors must share the
// length of the first one.
func Mean(vecs [][]float64) ([]float64, error) {
	if len(vecs) == 0 {
		return nil, nil
	}
	dim := len(vecs[0])
	out := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			return nil, &ArityError{Left: dim, Right: len(v)}
		}
		for i, x := range v {
			out[i] += x
		}
	}
	n := float64(len(vecs))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

// Valid reports whether v is non-empty and holds only finite values.
func Valid(v []float64) bool {
	if len(v) == 0 {
		return false
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
