// Package vecmath provides the distance arithmetic shared by the
// vector store adapters.
package vecmath

import "math"

// CosineDistance returns 1 - cosine(a, b), in [0, 2]. Lower is closer.
// Vectors with zero magnitude score as dissimilar (distance 1) rather
// than dividing by zero.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
