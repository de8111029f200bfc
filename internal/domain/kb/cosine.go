package kb

import "math"

// cosineSimilarity computes the normalized dot product in double precision.
// It reports ok=false for mismatched lengths or zero-magnitude vectors so
// callers treat those entries as unrankable instead of dividing by zero.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
