package embedding

import "math"

// Distance returns the Euclidean (L2) distance between two vectors at native
// model scale; no normalization is applied. Mismatched lengths mean a
// truncated or corrupted stored embedding, so the distance is +Inf and the
// vector can never be a match.
func Distance(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
