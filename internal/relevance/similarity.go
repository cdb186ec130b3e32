package relevance

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch indicates two vectors of different lengths were
// compared. Vectors from the same embedding model always share
// dimensionality, so this is a defect upstream, not a runtime condition.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CosineSimilarity returns dot(a,b) / (||a|| * ||b||). A zero vector is the
// least similar possible input: the result is 0, not NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
