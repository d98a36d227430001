package common

import "math"

// Epsilon is the tolerance used for geometric comparisons.
const Epsilon = 1e-9

// ZLayerThreshold is the z-depth gap beyond which two bodies live on separate layers.
const ZLayerThreshold = 0.5

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApproxEqual reports whether a and b differ by at most tol.
func ApproxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// MoveToward steps v toward zero by amount without crossing it.
func MoveToward(v, amount float64) float64 {
	if v > 0 {
		return math.Max(0, v-amount)
	}
	if v < 0 {
		return math.Min(0, v+amount)
	}
	return 0
}
