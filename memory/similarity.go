package memory

import "math"

// CosineSimilarity returns the directional closeness of two vectors in [-1, 1].
// Vectors of differing length compare as 0, as does any zero-magnitude vector
// (defined to avoid division by zero, not a claim of orthogonality).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
