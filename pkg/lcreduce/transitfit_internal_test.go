package lcreduce

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransitCostRejectsPlanetInsideStar: with a/R* locked below 1+p0 every
// parameter vector costs +Inf.
func TestTransitCostRejectsPlanetInsideStar(t *testing.T) {
	x := make([]float64, 40)
	y := make([]float64, 40)
	e := make([]float64, 40)
	for i := range x {
		x[i] = 2456500 + float64(i-20)*0.01
		y[i] = 1 + 0.001*math.Sin(float64(i))
		e[i] = 0.001
	}
	fp := newFitProblem(&Series{X: x, Y: y, YErr: e}, nil, Markers{}, RegionAll, false)
	require.Equal(t, 40, fp.n)

	ts := DefaultTransitSettings()
	full := make([]float64, NumTransitParams)
	for i, p := range ts.Priors {
		full[i] = p.Center
	}
	full[ParamAR] = 1.0
	full[ParamInclination] = 88 * deg
	obj := &transitObjective{
		fp:      fp,
		ts:      ts,
		full:    full,
		freeIdx: []int{ParamBaseline, ParamDepth},
		xs:      x,
		dof:     38,
	}
	for i := range x {
		obj.rows = append(obj.rows, i)
	}

	rng := rand.New(rand.NewSource(7))
	for k := 0; k < 200; k++ {
		v := []float64{0.5 + rng.Float64(), 0.01 + 0.49*rng.Float64()}
		assert.True(t, math.IsInf(obj.cost(v), 1), "vector %v must be rejected", v)
	}

	full[ParamAR] = 10
	assert.False(t, math.IsInf(obj.cost([]float64{1, 0.1}), 1), "a/R* outside the star is allowed")
}

// TestFitProblemPowers: a repeated regressor enters as its centred square.
func TestFitProblemPowers(t *testing.T) {
	s := &Series{
		X:    []float64{1, 2, 3, 4},
		Y:    []float64{1, 2, 3, 5},
		YErr: []float64{1, 1, 1, 1},
	}
	a := []float64{1, 2, 3, 4}
	s.Regressors = [][]float64{a, a}
	fp := newFitProblem(s, []string{"a", "a"}, Markers{}, RegionAll, false)

	assert.Equal(t, []float64{-1.5, -0.5, 0.5, 1.5}, fp.regs[0])
	// squares 2.25, 0.25, 0.25, 2.25 centred on 1.25
	assert.Equal(t, []float64{1, -1, -1, 1}, fp.regs[1])
	assert.Equal(t, []bool{true, true}, fp.active)
}

// TestApplyTrendDivide divides by the relative trend.
func TestApplyTrendDivide(t *testing.T) {
	y, e := applyTrend([]float64{12, 10}, []float64{1.2, 1}, []float64{2, 0}, 10, true)
	assert.InDelta(t, 10.0, y[0], 1e-12)
	assert.InDelta(t, 1.0, e[0], 1e-12)
	assert.Equal(t, 10.0, y[1], "zero trend is skipped")

	y, e = applyTrend([]float64{12}, []float64{1.2}, []float64{2}, 10, false)
	assert.Equal(t, 10.0, y[0])
	assert.InDelta(t, 1.0, e[0], 1e-12, "error scales with the subtracted fraction")
}
