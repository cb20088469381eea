package reindex

import "math"

// NormalizeVector scales v to unit length so reindexed vectors compare by
// cosine similarity directly. Returns a new slice; a zero vector stays zero
// since it has no direction to preserve.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}

	inv := float32(1 / math.Sqrt(sum))
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}
