package lcreduce

import (
	"math"
)

// meanMasked averages the non-NaN values where mask is true (nil mask selects all).
func meanMasked(values []float64, mask []bool) (float64, int) {
	sum := 0.0
	n := 0
	for i, v := range values {
		if (mask != nil && !mask[i]) || math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN(), 0
	}
	return sum / float64(n), n
}

// weightedMeanMasked is the inverse-variance weighted mean.
func weightedMeanMasked(values, errs []float64, mask []bool) (float64, int) {
	sw, swy := 0.0, 0.0
	n := 0
	for i, v := range values {
		if (mask != nil && !mask[i]) || math.IsNaN(v) {
			continue
		}
		e := errs[i]
		if math.IsNaN(e) || e == 0 {
			continue
		}
		w := 1 / (e * e)
		sw += w
		swy += w * v
		n++
	}
	if n == 0 || sw == 0 {
		return math.NaN(), 0
	}
	return swy / sw, n
}

// isConstant reports whether all selected values are equal.
func isConstant(values []float64, mask []bool) bool {
	first := math.NaN()
	for i, v := range values {
		if mask != nil && !mask[i] {
			continue
		}
		if math.IsNaN(first) {
			first = v
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

func countTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
