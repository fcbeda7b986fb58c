package lcreduce_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/lcreduce"
)

func newTable(t *testing.T, cols map[string][]float64) *lcreduce.Table {
	t.Helper()
	tbl := lcreduce.NewTable()
	for name, v := range cols {
		require.NoError(t, tbl.AddColumn(name, v))
	}
	return tbl
}

// trendTable holds y = 100 + 2*airmass and an unrelated wobble column.
func trendTable(t *testing.T) *lcreduce.Table {
	n := 50
	x := make([]float64, n)
	y := make([]float64, n)
	airmass := make([]float64, n)
	wobble := make([]float64, n)
	flat := make([]float64, n)
	for i := range x {
		x[i] = 2456500 + float64(i)*0.01
		airmass[i] = 1 + float64(i)/50
		wobble[i] = math.Sin(float64(i) * 1.7)
		y[i] = 100 + 2*airmass[i]
		flat[i] = 5
	}
	return newTable(t, map[string][]float64{
		"JD_UTC": x, "rel_flux_T1": y, "AIRMASS": airmass, "wobble": wobble, "flat": flat,
	})
}

// TestReduceDivide runs the divide-by-zero scenario end to end.
func TestReduceDivide(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"a": {4, 4}, "b": {0, 2}})
	cs := lcreduce.NewCurveSettings("c", "a")
	cs.Operator = lcreduce.OpDivide
	cs.OperandColumn = "b"

	r := lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	assert.Equal(t, []float64{lcreduce.DivideByZeroSentinel, 2}, r.Y)
	assert.Equal(t, []float64{lcreduce.DivideByZeroSentinel, 1}, r.YErr)
	assert.Equal(t, []float64{1, 2}, r.X, "missing x column uses sample numbers")
}

// TestReduceBucketsBeforeOperator averages every input column per bucket and
// applies the operator to the averages.
func TestReduceBucketsBeforeOperator(t *testing.T) {
	sentinel := lcreduce.DivideByZeroSentinel
	cases := []struct {
		name    string
		cols    map[string][]float64
		setup   func(cs *lcreduce.CurveSettings)
		wantY   []float64
		wantErr []float64
		hasErr  bool
	}{
		{
			name: "divide averages",
			cols: map[string][]float64{"a": {4, 4}, "b": {1, 3}},
			setup: func(cs *lcreduce.CurveSettings) {
				cs.Operator, cs.OperandColumn = lcreduce.OpDivide, "b"
			},
			wantY:   []float64{2},
			wantErr: []float64{1},
		},
		{
			name: "multiply averages",
			cols: map[string][]float64{"a": {2, 4}, "b": {1, 3}},
			setup: func(cs *lcreduce.CurveSettings) {
				cs.Operator, cs.OperandColumn = lcreduce.OpMultiply, "b"
			},
			wantY:   []float64{6},
			wantErr: []float64{1},
		},
		{
			name: "centroid of averaged positions",
			cols: map[string][]float64{"a": {1, 1}, "x1": {1, -1}, "y1": {0, 0}, "x2": {0, 0}, "y2": {0, 0}},
			setup: func(cs *lcreduce.CurveSettings) {
				cs.Operator = lcreduce.OpCentroidDistance
				cs.Centroid = lcreduce.CentroidColumns{X1: "x1", Y1: "y1", X2: "x2", Y2: "y2"}
			},
			wantY:   []float64{0},
			wantErr: []float64{1},
		},
		{
			name: "zero bucket operand",
			cols: map[string][]float64{"a": {4, 4}, "b": {1, -1}},
			setup: func(cs *lcreduce.CurveSettings) {
				cs.Operator, cs.OperandColumn = lcreduce.OpDivide, "b"
			},
			wantY:   []float64{sentinel},
			wantErr: []float64{sentinel},
		},
		{
			name:    "default error after aggregation",
			cols:    map[string][]float64{"a": {1, 2, 3, 4}},
			setup:   func(cs *lcreduce.CurveSettings) {},
			wantY:   []float64{1.5, 3.5},
			wantErr: []float64{1, 1},
		},
		{
			name: "operand gated on primary",
			cols: map[string][]float64{"a": {math.NaN(), 4}, "b": {9, 2}},
			setup: func(cs *lcreduce.CurveSettings) {
				cs.Operator, cs.OperandColumn = lcreduce.OpDivide, "b"
			},
			wantY:   []float64{2},
			wantErr: []float64{1},
		},
		{
			name: "measured errors",
			cols: map[string][]float64{"rel_flux_T1": {4, 4}, "rel_flux_err_T1": {0.2, 0.2}, "b": {2, 2}},
			setup: func(cs *lcreduce.CurveSettings) {
				cs.YColumn = "rel_flux_T1"
				cs.Operator, cs.OperandColumn = lcreduce.OpDivide, "b"
			},
			wantY:   []float64{2},
			wantErr: []float64{math.Sqrt(0.08) / 2 / 2},
			hasErr:  true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cs := lcreduce.NewCurveSettings("c", "a")
			cs.BinSize = 2
			tc.setup(&cs)
			r := lcreduce.ReduceCurve(newTable(t, tc.cols), cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
			require.Equal(t, lcreduce.StatusOK, r.Status, "curve reduces")
			require.Len(t, r.Y, len(tc.wantY), "one sample per bucket")
			for i := range tc.wantY {
				assert.InDelta(t, tc.wantY[i], r.Y[i], 1e-12, "y[%d]", i)
				assert.InDelta(t, tc.wantErr[i], r.YErr[i], 1e-12, "yErr[%d]", i)
			}
			assert.Equal(t, tc.hasErr, r.HasErr, "measured error flag")
		})
	}
}

// TestReduceMissingColumn disables the curve with a reason.
func TestReduceMissingColumn(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"a": {1, 2}})
	r := lcreduce.ReduceCurve(tbl, lcreduce.NewCurveSettings("c", "nope"), lcreduce.Markers{}, lcreduce.DefaultOptions())
	assert.Equal(t, lcreduce.StatusDisabled, r.Status)
	assert.Contains(t, r.Reason, "nope")
}

// TestReduceMissingOperand ignores the operator with a warning.
func TestReduceMissingOperand(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"a": {1, 2}})
	cs := lcreduce.NewCurveSettings("c", "a")
	cs.Operator = lcreduce.OpSubtract
	cs.OperandColumn = "missing"
	r := lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	assert.Equal(t, []float64{1, 2}, r.Y)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "missing")
}

// TestReduceNoRegressors: detrending with nothing selected leaves y alone.
func TestReduceNoRegressors(t *testing.T) {
	tbl := trendTable(t)
	cs := lcreduce.NewCurveSettings("c", "rel_flux_T1")
	cs.XColumn = "JD_UTC"
	cs.Detrend.Mode = lcreduce.DetrendAll

	r := lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	raw, _ := tbl.Column("rel_flux_T1")
	assert.Equal(t, raw, r.Y)
	assert.Empty(t, r.Coefficients)
	assert.Empty(t, r.Warnings)
}

// TestReduceLinearTrend removes an exact airmass trend by regression and by simplex.
func TestReduceLinearTrend(t *testing.T) {
	tbl := trendTable(t)
	cs := lcreduce.NewCurveSettings("c", "rel_flux_T1")
	cs.XColumn = "JD_UTC"
	cs.Detrend = lcreduce.DetrendSettings{Mode: lcreduce.DetrendAll, Regressors: []string{"AIRMASS"}}

	r := lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	require.Len(t, r.Coefficients, 1)
	assert.InDelta(t, 2.0, r.Coefficients[0], 1e-6)
	for i := range r.Y {
		assert.InDelta(t, r.Y[0], r.Y[i], 1e-6, "detrended curve is flat")
	}
	assert.InDelta(t, 0.0, r.Stats.Sigma, 1e-6)

	opts := lcreduce.DefaultOptions()
	opts.NelderMeadDetrend = true
	r = lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, opts)
	require.Equal(t, lcreduce.StatusOK, r.Status)
	assert.InDelta(t, 2.0, r.Coefficients[0], 1e-3)
}

// TestReduceConstantRegressor: a regressor constant in the region gets coefficient 0.
func TestReduceConstantRegressor(t *testing.T) {
	tbl := trendTable(t)
	cs := lcreduce.NewCurveSettings("c", "rel_flux_T1")
	cs.XColumn = "JD_UTC"
	cs.Detrend = lcreduce.DetrendSettings{Mode: lcreduce.DetrendAll, Regressors: []string{"flat", "AIRMASS"}}

	r := lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	assert.Equal(t, 0.0, r.Coefficients[0])
	assert.InDelta(t, 2.0, r.Coefficients[1], 1e-6)
	assert.Equal(t, []string{"flat"}, r.Dropped)
}

// TestReduceNormalize divides by the region mean and reports the reference.
func TestReduceNormalize(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"x": {1, 2, 3, 4}, "y": {2, 4, 6, 8}})
	cs := lcreduce.NewCurveSettings("c", "y")
	cs.XColumn = "x"
	cs.Normalize = lcreduce.NormalizeSettings{Mode: lcreduce.NormMean, Region: lcreduce.RegionLeftOfInner}
	markers := lcreduce.Markers{InnerLeft: 2.5, InnerRight: 3.5, Right: 3.5}

	r := lcreduce.ReduceCurve(tbl, cs, markers, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	assert.Equal(t, 3.0, r.Reference)
	for i, v := range []float64{2, 4, 6, 8} {
		assert.InDelta(t, v, r.Y[i]*r.Reference, 1e-12, "normalization is invertible")
	}
}

// TestNormalizeModes covers magnitudes, weights and the empty-region fallback.
func TestNormalizeModes(t *testing.T) {
	x := []float64{1, 2, 3}
	y := []float64{1, 1, 4}
	e := []float64{0.1, 0.1, 1}

	w := lcreduce.Normalize(x, y, e, nil, lcreduce.NormalizeSettings{Mode: lcreduce.NormWeightedMean}, lcreduce.Markers{})
	assert.InDelta(t, (100+100+4)/201.0, w.Reference, 1e-12)

	m := lcreduce.Normalize(x, y, e, nil,
		lcreduce.NormalizeSettings{Mode: lcreduce.NormMean, Magnitude: true}, lcreduce.Markers{})
	assert.InDelta(t, -2.5*math.Log10(4/2.0), m.Y[2], 1e-12)
	assert.InDelta(t, 2.5/math.Ln10*0.1, m.YErr[0], 1e-12)

	f := lcreduce.Normalize(x, y, e, nil,
		lcreduce.NormalizeSettings{Mode: lcreduce.NormMean, Region: lcreduce.RegionInsideInner},
		lcreduce.Markers{InnerLeft: 10, InnerRight: 11, Right: 11})
	assert.True(t, f.Fallback)
	assert.Equal(t, 2.0, f.Reference)
}

// TestEstimatePriors reads baseline, depth and Tc from the inner window.
func TestEstimatePriors(t *testing.T) {
	var x, y []float64
	for i := 0; i <= 100; i++ {
		xi := float64(i) * 0.1
		yi := 1.0
		if xi > 4.2 && xi < 5.8 {
			yi = 0.99
		}
		x = append(x, xi)
		y = append(y, yi)
	}
	ts := lcreduce.DefaultTransitSettings()
	ts.Priors[lcreduce.ParamAR].Locked = true
	markers := lcreduce.Markers{InnerLeft: 4, InnerRight: 6, Right: 6}

	p := lcreduce.EstimatePriors(x, y, markers, ts)
	assert.InDelta(t, 1.0, p[lcreduce.ParamBaseline].Center, 1e-12)
	assert.InDelta(t, 0.01, p[lcreduce.ParamDepth].Center, 1e-9)
	assert.InDelta(t, 5.0, p[lcreduce.ParamTc].Center, 1e-12)
	assert.Equal(t, 10.0, p[lcreduce.ParamAR].Center, "locked priors are kept")
}

// syntheticTransit builds a noise-free transit table and matching settings.
func syntheticTransit(t *testing.T) (*lcreduce.Table, lcreduce.CurveSettings, lcreduce.ModelParams) {
	truth := lcreduce.ModelParams{F0: 1, P0: 0.1, AR: 10, Tc: 2456500, Inclination: 89.5 * math.Pi / 180, U1: 0.3, U2: 0.2}
	orbit := lcreduce.Orbit{Period: 3}
	n := 200
	x := make([]float64, n)
	for i := range x {
		x[i] = truth.Tc - 0.15 + 0.3*float64(i)/float64(n-1)
	}
	tbl := newTable(t, map[string][]float64{"BJD_TDB": x, "flux": lcreduce.TransitModel(x, truth, orbit)})

	cs := lcreduce.NewCurveSettings("t", "flux")
	cs.XColumn = "BJD_TDB"
	cs.Detrend.Mode = lcreduce.DetrendTransit
	cs.Transit.Enabled = true
	cs.Transit.Orbit = orbit
	pr := &cs.Transit.Priors
	pr[lcreduce.ParamDepth].Center = 0.008
	pr[lcreduce.ParamAR] = lcreduce.Prior{Center: 10, Step: 1, Locked: true}
	pr[lcreduce.ParamTc] = lcreduce.Prior{Center: truth.Tc, Step: 0.001, Locked: true}
	pr[lcreduce.ParamInclination] = lcreduce.Prior{Center: 89.5, Step: 1, Locked: true}
	pr[lcreduce.ParamU1] = lcreduce.Prior{Center: 0.3, Step: 0.1, Locked: true}
	pr[lcreduce.ParamU2] = lcreduce.Prior{Center: 0.2, Step: 0.1, Locked: true}
	return tbl, cs, truth
}

// TestReduceTransitLockedParameters: locked values survive and reduce the DOF.
func TestReduceTransitLockedParameters(t *testing.T) {
	tbl, cs, truth := syntheticTransit(t)

	r := lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	require.NotNil(t, r.Fit, "transit fit ran")
	assert.True(t, r.Fit.Converged)
	assert.Equal(t, 2, r.Fit.NFree)
	assert.Equal(t, 198, r.Fit.DOF)
	assert.Equal(t, 10.0, r.Fit.Params[lcreduce.ParamAR], "locked a/R* unchanged")
	assert.InDelta(t, truth.Inclination, r.Fit.Params[lcreduce.ParamInclination], 1e-12)
	assert.InDelta(t, 0.1, r.Fit.Params[lcreduce.ParamDepth], 1e-3)
	assert.InDelta(t, 1.0, r.Fit.Params[lcreduce.ParamBaseline], 1e-4)

	st := r.Stats
	assert.True(t, st.Fitted)
	assert.GreaterOrEqual(t, st.T14, st.T23)
	assert.GreaterOrEqual(t, st.T23, 0.0)
	assert.Len(t, r.ModelX, 500, "dense model samples for drawing")
	assert.True(t, math.IsNaN(st.PlanetRadius), "no host star given")
	assert.NotEmpty(t, st.SpectralType, "spectral type from the fitted density")
}

// TestReduceTransitImpossibleGeometry: a locked a/R* inside the star never converges.
func TestReduceTransitImpossibleGeometry(t *testing.T) {
	tbl, cs, _ := syntheticTransit(t)
	cs.Transit.Priors[lcreduce.ParamAR].Center = 1.0
	cs.Transit.Priors[lcreduce.ParamDepth].Locked = true

	r := lcreduce.ReduceCurve(tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions())
	require.Equal(t, lcreduce.StatusOK, r.Status)
	require.NotNil(t, r.Fit)
	assert.False(t, r.Fit.Converged)
	assert.Equal(t, 0, r.Fit.Iterations)
	assert.True(t, strings.HasSuffix(r.Stats.Display()["chi2dof"], "(not converged)"))
}
