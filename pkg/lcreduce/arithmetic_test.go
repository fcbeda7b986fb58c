package lcreduce_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/lcreduce"
)

// TestCombineDivideByZero: a zero divisor yields the sentinel in value and error.
func TestCombineDivideByZero(t *testing.T) {
	out := lcreduce.Combine(lcreduce.OpDivide,
		lcreduce.Measurement{Values: []float64{4, 4}},
		lcreduce.Measurement{Values: []float64{0, 2}})
	assert.Equal(t, []float64{lcreduce.DivideByZeroSentinel, 2}, out.Values)
	assert.Equal(t, []float64{lcreduce.DivideByZeroSentinel, 1}, out.Errors,
		"without input errors the error is 1 except at the sentinel")
}

// TestCombineQuadrature propagates errors for multiply and subtract.
func TestCombineQuadrature(t *testing.T) {
	mul := lcreduce.Combine(lcreduce.OpMultiply,
		lcreduce.Measurement{Values: []float64{2}, Errors: []float64{0.1}},
		lcreduce.Measurement{Values: []float64{3}, Errors: []float64{0.2}})
	assert.InDelta(t, 6.0, mul.Values[0], 1e-12)
	assert.InDelta(t, 0.5, mul.Errors[0], 1e-12)

	sub := lcreduce.Combine(lcreduce.OpSubtract,
		lcreduce.Measurement{Values: []float64{5}, Errors: []float64{0.3}},
		lcreduce.Measurement{Values: []float64{2}, Errors: []float64{0.4}})
	assert.InDelta(t, 3.0, sub.Values[0], 1e-12)
	assert.InDelta(t, 0.5, sub.Errors[0], 1e-12)

	div := lcreduce.Combine(lcreduce.OpDivide,
		lcreduce.Measurement{Values: []float64{6}, Errors: []float64{0.3}},
		lcreduce.Measurement{Values: []float64{3}})
	assert.InDelta(t, 2.0, div.Values[0], 1e-12)
	assert.InDelta(t, 0.1, div.Errors[0], 1e-12, "missing operand errors count as zero")
}

// TestCombineCustomError takes errors from the operand column.
func TestCombineCustomError(t *testing.T) {
	out := lcreduce.Combine(lcreduce.OpCustomError,
		lcreduce.Measurement{Values: []float64{10, 11}},
		lcreduce.Measurement{Values: []float64{0.5, 0.7}})
	assert.Equal(t, []float64{10, 11}, out.Values)
	assert.Equal(t, []float64{0.5, 0.7}, out.Errors)
}

// TestCentroidDistance scales the Euclidean distance.
func TestCentroidDistance(t *testing.T) {
	d := lcreduce.CentroidDistance([]float64{0}, []float64{0}, []float64{3}, []float64{4}, 2)
	require.Len(t, d, 1)
	assert.InDelta(t, 10.0, d[0], 1e-12)
}

// TestMagnitudeToFlux: zero magnitude is unit flux with a derivative error.
func TestMagnitudeToFlux(t *testing.T) {
	out := lcreduce.MagnitudeToFlux(lcreduce.Measurement{Values: []float64{0, 2.5}, Errors: []float64{0.1, 0}})
	assert.InDelta(t, 1.0, out.Values[0], 1e-12)
	assert.InDelta(t, 0.1, out.Values[1], 1e-12)
	assert.InDelta(t, math.Ln10/25, out.Errors[0], 1e-12)
	assert.Nil(t, lcreduce.MagnitudeToFlux(lcreduce.Measurement{Values: []float64{1}}).Errors,
		"unavailable errors stay unavailable")
}

// TestOperatorParse round-trips the configuration names.
func TestOperatorParse(t *testing.T) {
	op, err := lcreduce.ParseOperator(" Divide ")
	require.NoError(t, err)
	assert.Equal(t, lcreduce.OpDivide, op)
	_, err = lcreduce.ParseOperator("modulo")
	assert.Error(t, err, "unknown operator names are rejected")
}
