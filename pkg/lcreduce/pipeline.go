package lcreduce

import (
	"fmt"
	"math"
)

// Options are the pass-wide pipeline settings.
type Options struct {
	NelderMeadDetrend bool
	DivideDetrend     bool
	ModelSamples      int
	XAxis             XAxis
}

// DefaultOptions returns regression detrending with subtraction and 500 model samples.
func DefaultOptions() Options {
	return Options{ModelSamples: 500}
}

// loadSeries reads, aggregates and combines one curve. Every input column is
// bucketed on its own, gated on the primary column, and the operator is applied
// to the bucket averages. A non-empty reason means the curve cannot be reduced
// in this pass.
func loadSeries(src DataSource, cs *CurveSettings, markers Markers) (s *Series, warnings []string, reason string) {
	rows := src.RowCount()
	if rows == 0 {
		return nil, nil, "empty table"
	}
	yCol := src.ColumnIndex(cs.YColumn)
	if yCol == ColumnNotFound {
		return nil, nil, fmt.Sprintf("column %q not found", cs.YColumn)
	}

	var x []float64
	if cs.XColumn == "" {
		x = make([]float64, rows)
		for i := range x {
			x[i] = float64(i + 1)
		}
	} else {
		xCol := src.ColumnIndex(cs.XColumn)
		if xCol == ColumnNotFound {
			return nil, nil, fmt.Sprintf("column %q not found", cs.XColumn)
		}
		x = readColumn(src, xCol)
		if off := jdOffset(cs.XColumn); off != 0 {
			for i := range x {
				x[i] += off
			}
		}
	}

	primary := Measurement{Values: readColumn(src, yCol)}
	errName := cs.ErrColumn
	if errName == "" {
		errName, _ = ErrorColumnFor(cs.YColumn)
	}
	if c := src.ColumnIndex(errName); errName != "" && c != ColumnNotFound {
		primary.Errors = readColumn(src, c)
	}
	if cs.FromMagnitude {
		primary = MagnitudeToFlux(primary)
	}

	gate := primary.Values
	b := newBucketing(rows, cs.ExcludeHead, cs.ExcludeTail, cs.BinSize)
	bucket := func(m Measurement) Measurement {
		if m.Values == nil {
			return m
		}
		out := Measurement{Values: aggregateGated(m.Values, gate, b)}
		if m.Errors != nil {
			out.Errors = aggregateErrors(m.Errors, gate, b)
		}
		return out
	}

	op := cs.Operator
	var operand Measurement
	var dist []float64
	switch op {
	case OpNone:
	case OpCentroidDistance:
		cols := []string{cs.Centroid.X1, cs.Centroid.Y1, cs.Centroid.X2, cs.Centroid.Y2}
		vals := make([][]float64, len(cols))
		for i, name := range cols {
			c := src.ColumnIndex(name)
			if c == ColumnNotFound {
				warnings = append(warnings, fmt.Sprintf("centroid column %q not found, operator ignored", name))
				op = OpNone
				break
			}
			vals[i] = aggregateGated(readColumn(src, c), gate, b)
		}
		if op == OpCentroidDistance {
			scale := 1.0
			if cs.UsePixelScale {
				scale = cs.PixelScale
			}
			dist = CentroidDistance(vals[0], vals[1], vals[2], vals[3], scale)
		}
	default:
		c := src.ColumnIndex(cs.OperandColumn)
		if c == ColumnNotFound {
			warnings = append(warnings, fmt.Sprintf("operand column %q not found, operator ignored", cs.OperandColumn))
			op = OpNone
			break
		}
		operand.Values = readColumn(src, c)
		if op == OpCustomError {
			break
		}
		oeName := cs.OperandErrColumn
		if oeName == "" {
			oeName, _ = ErrorColumnFor(cs.OperandColumn)
		}
		if ce := src.ColumnIndex(oeName); oeName != "" && ce != ColumnNotFound {
			operand.Errors = readColumn(src, ce)
		}
		if cs.FromMagnitude {
			operand = MagnitudeToFlux(operand)
		}
	}

	var combined Measurement
	hasErr := false
	if dist != nil {
		// distances carry no measured error
		combined = Combine(OpNone, Measurement{Values: dist}, Measurement{})
	} else {
		combined = Combine(op, bucket(primary), bucket(operand))
		hasErr = primary.Errors != nil || operand.Errors != nil || op == OpCustomError
	}
	s = &Series{
		X:      aggregateGated(x, gate, b),
		Y:      combined.Values,
		YErr:   combined.Errors,
		HasErr: hasErr,
	}
	s.Regressors = make([][]float64, len(cs.Detrend.Regressors))
	for i, name := range cs.Detrend.Regressors {
		if name == MeridianFlipRegressor {
			s.Regressors[i] = meridianFlip(s.X, markers.MeridianFlip)
			continue
		}
		c := src.ColumnIndex(name)
		if c == ColumnNotFound {
			warnings = append(warnings, fmt.Sprintf("regressor column %q not found", name))
			continue
		}
		s.Regressors[i] = aggregateGated(readColumn(src, c), gate, b)
	}
	return s, warnings, ""
}

// ReduceCurve runs one curve through aggregation, arithmetic, detrending or
// transit fitting, normalization and derived statistics. It never fails: data
// problems are reported through the result status.
func ReduceCurve(src DataSource, cs CurveSettings, markers Markers, opts Options) CurveResult {
	res := CurveResult{ID: cs.ID, Reference: 1}
	if !cs.Enabled {
		res.Status, res.Reason = StatusDisabled, "disabled"
		return res
	}
	s, warnings, reason := loadSeries(src, &cs, markers)
	res.Warnings = warnings
	if reason != "" {
		res.Status, res.Reason = StatusDisabled, reason
		return res
	}

	mode := cs.Detrend.Mode
	region, fits := mode.Region()
	fp := newFitProblem(s, cs.Detrend.Regressors, markers, region, mode == DetrendUser)
	res.Dropped = fp.dropped()
	coeffs := make([]float64, len(cs.Detrend.Regressors))
	var fit *FitResult
	nParams := 0

	switch {
	case mode == DetrendOff:
	case mode == DetrendUser:
		copy(coeffs, cs.Detrend.Coefficients)
	case mode == DetrendTransit && cs.Transit.Enabled:
		priors := cs.Transit.Priors
		if cs.Transit.AutoUpdatePriors {
			priors = EstimatePriors(s.X, s.Y, markers, cs.Transit)
		}
		var why string
		fit, why = fitTransit(fp, cs.Transit, priors)
		if fit == nil {
			res.Warnings = append(res.Warnings, "transit fit skipped: "+why)
			break
		}
		copy(coeffs, fit.Detrend)
		nParams = fit.NFree
	case fits:
		d := fp.solveDetrend(opts.NelderMeadDetrend)
		if !d.Fitted {
			if fp.activeCount() > 0 {
				res.Warnings = append(res.Warnings, "detrend skipped: "+d.Reason)
			}
			break
		}
		copy(coeffs, d.Coefficients)
		nParams = fp.activeCount() + 1
	default:
		panic(fmt.Sprintf("lcreduce: unhandled %v", mode))
	}
	res.Coefficients = coeffs

	trend := fp.trend(coeffs)
	y, yErr := applyTrend(s.Y, s.YErr, trend, fp.yAvg, opts.DivideDetrend)

	// model at every sample plus a dense copy for drawing
	var model []float64
	if fit != nil {
		model = TransitModel(s.X, fit.Model(), cs.Transit.Orbit)
		res.ModelX = denseGrid(s.X, fp.mask, opts.ModelSamples)
		res.ModelY = TransitModel(res.ModelX, fit.Model(), cs.Transit.Orbit)
	} else {
		level, _ := meanMasked(y, fp.mask)
		model = fill(len(y), level)
		res.ModelX = denseGrid(s.X, fp.mask, 2)
		res.ModelY = fill(len(res.ModelX), level)
	}

	norm := Normalize(s.X, y, yErr, model, cs.Normalize, markers)
	res.Y, res.YErr, res.Model, res.Reference = norm.Y, norm.YErr, norm.Model, norm.Reference
	res.ModelY = norm.Apply(res.ModelY, cs.Normalize)
	if norm.Fallback {
		res.Warnings = append(res.Warnings, "normalization region empty, using all data")
	}

	res.Residual = make([]float64, len(res.Y))
	res.ResidualErr = make([]float64, len(res.Y))
	for i := range res.Y {
		res.Residual[i] = res.Y[i] - res.Model[i]
		res.ResidualErr[i] = res.YErr[i]
	}

	res.HasErr = s.HasErr
	res.Stats = curveStatistics(fp, s, y, model, fit, nParams, cs.Transit)
	res.Fit = fit
	res.X = opts.XAxis.Apply(s.X)
	res.ModelX = opts.XAxis.Apply(res.ModelX)
	res.Status = StatusOK
	return res
}

// curveStatistics computes sigma, chi-square and the transit-derived values.
func curveStatistics(fp *fitProblem, s *Series, y, model []float64, fit *FitResult, nParams int, ts TransitSettings) Statistics {
	st := Statistics{
		Samples:        s.Len(),
		FitSamples:     fp.n,
		Chi2Dof:        math.NaN(),
		BIC:            math.NaN(),
		Depth:          math.NaN(),
		Impact:         math.NaN(),
		T14:            math.NaN(),
		T23:            math.NaN(),
		Tau:            math.NaN(),
		StellarDensity: math.NaN(),
		PlanetRadius:   math.NaN(),
	}
	ss, chi2 := 0.0, 0.0
	for i, in := range fp.mask {
		if !in || math.IsNaN(y[i]) {
			continue
		}
		r := y[i] - model[i]
		ss += r * r
		sg := fp.sigma(i)
		chi2 += r * r / (sg * sg)
	}
	if fp.n > 0 {
		st.Sigma = math.Sqrt(ss / float64(fp.n))
	} else {
		st.Sigma = math.NaN()
	}
	baseline := fp.yAvg
	if fit != nil {
		baseline = fit.Params[ParamBaseline]
	}
	st.RMS = st.Sigma / baseline

	if fit == nil {
		if nParams > 0 && fp.n > nParams {
			st.DOF = fp.n - nParams
			st.Chi2Dof = chi2 / float64(st.DOF)
			st.BIC = BIC(st.Chi2Dof, fp.n, nParams)
		}
		return st
	}

	m := fit.Model()
	st.Fitted = true
	st.Converged = fit.Converged
	st.Chi2Dof = fit.Chi2Dof
	st.BIC = fit.BIC
	st.DOF = fit.DOF
	st.Depth = TransitDepth(m, ts.Orbit)
	if ts.ImpactLock {
		st.Impact = ts.Impact
	} else {
		st.Impact = ImpactParameter(m.AR, m.Inclination, ts.Orbit)
	}
	st.T14, st.T23, st.Tau = Durations(m.P0, m.AR, m.Inclination, st.Impact, ts.Orbit)
	st.StellarDensity = StellarDensity(m.P0, st.Impact, st.T14, ts.Orbit.Period)
	switch {
	case ts.HostRadius > 0:
		st.PlanetRadius = PlanetRadiusFromStar(ts.HostRadius, m.P0)
	case ts.HostTeff > 0:
		st.PlanetRadius = PlanetRadiusFromTeff(ts.HostTeff, m.P0)
		st.SpectralType = SpectralTypeFromTeff(ts.HostTeff)
	default:
		st.SpectralType = SpectralTypeFromDensity(st.StellarDensity)
	}
	return st
}

// denseGrid spans the fit-region x range with n evenly spaced points.
func denseGrid(x []float64, mask []bool, n int) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range x {
		if !mask[i] || math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 0) || n < 2 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}
