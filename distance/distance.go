package distance

import (
	"math"
	"math/bits"
)

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// The loop is unrolled by four; the tail is handled separately.
func SquaredL2(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return s0 + s1 + s2 + s3
}

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// Hamming64 returns the number of differing bits between two 64-bit hashes.
func Hamming64(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Intersection returns the histogram intersection sum(min(a[i], b[i])).
// For two histograms normalized to sum 1 the result lies in [0, 1].
func Intersection(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += min(a[i], b[i])
	}
	return s
}
