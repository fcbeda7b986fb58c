package lcreduce

import (
	"math"
)

const deg = math.Pi / 180

// FitResult is the immutable outcome of one joint transit and detrend fit.
type FitResult struct {
	// Params holds f0, p0, a/R*, Tc, inclination (radians), u1, u2.
	Params     [NumTransitParams]float64
	Detrend    []float64
	Free       [NumTransitParams]bool
	NFree      int
	Converged  bool
	Iterations int
	Chi2Dof    float64
	BIC        float64
	DOF        int
	Samples    int
	// Priors are the priors the fit started from, after any automatic estimate.
	Priors [NumTransitParams]Prior
	// AdjustedInclination is the inclination prior (degrees) proposed by the
	// impact-geometry guard, NaN when the guard never fired.
	AdjustedInclination float64
}

// Model returns the fitted physical parameters.
func (r *FitResult) Model() ModelParams { return ParamsFromVector(r.Params[:]) }

// transitObjective is the cost function of the joint fit.
type transitObjective struct {
	fp       *fitProblem
	ts       TransitSettings
	full     []float64 // current full vector, locked entries preset
	freeIdx  []int     // full-vector index of every optimizer coordinate
	xs       []float64 // fit-region times
	rows     []int     // sample index of every fit-region time
	dof      int
	adjusted float64
}

func (o *transitObjective) expand(v []float64) []float64 {
	full := append([]float64(nil), o.full...)
	for k, idx := range o.freeIdx {
		full[idx] = v[k]
	}
	if o.ts.ImpactLock {
		full[ParamInclination] = math.Acos(o.ts.Impact / full[ParamAR])
	}
	return full
}

func (o *transitObjective) isFree(idx int) bool {
	for _, f := range o.freeIdx {
		if f == idx {
			return true
		}
	}
	return false
}

func (o *transitObjective) cost(v []float64) float64 {
	full := o.expand(v)
	p0, ar, incl := full[ParamDepth], full[ParamAR], full[ParamInclination]
	u1, u2 := full[ParamU1], full[ParamU2]
	orbit := o.ts.Orbit
	e, w := orbit.Eccentricity, orbit.omega()

	if ar < 1+p0 {
		return math.Inf(1)
	}
	if o.isFree(ParamAR) || o.isFree(ParamInclination) || o.ts.ImpactLock {
		if ImpactParameter(ar, incl, orbit) >= 1+p0 || math.IsNaN(incl) {
			if o.ts.AutoUpdatePriors {
				adj := math.Round(10*math.Acos((0.5+p0)*(1+e*math.Sin(w))/(ar*(1-e*e)))/deg) / 10
				if math.IsNaN(adj) {
					adj = 89.9
				}
				o.adjusted = adj
			}
			return math.Inf(1)
		}
	}
	if o.isFree(ParamU1) || o.isFree(ParamU2) {
		if u1+u2 < 0 || u1+u2 > 1 || u1 < 0 || u1 > 1 || u2 < -1 || u2 > 1 {
			return math.Inf(1)
		}
	}

	model := TransitModel(o.xs, ParamsFromVector(full), orbit)
	chi2 := 0.0
	for k, i := range o.rows {
		res := o.fp.y[i] - o.fp.yAvg
		for r, c := range full[NumTransitParams:] {
			if c != 0 {
				res -= c * o.fp.regs[r][i]
			}
		}
		res -= model[k] - o.fp.yAvg
		s := o.fp.sigma(i)
		chi2 += res * res / (s * s)
	}
	return chi2 / float64(o.dof)
}

// EstimatePriors derives starting priors for unlocked parameters from the data
// around the inner markers: baseline from out-of-transit samples, depth from the
// central half of the inner window, Tc from the window centre and a/R* and
// inclination from the window duration.
func EstimatePriors(x, y []float64, markers Markers, ts TransitSettings) [NumTransitParams]Prior {
	priors := ts.Priors
	left, right := markers.InnerLeft, markers.InnerRight
	quarter := (right - left) / 4
	var base, dip, all []float64
	for i, xi := range x {
		if math.IsNaN(xi) || math.IsNaN(y[i]) {
			continue
		}
		all = append(all, y[i])
		switch {
		case xi < left || xi > right:
			base = append(base, y[i])
		case xi > left+quarter && xi < right-quarter:
			dip = append(dip, y[i])
		}
	}
	if len(all) == 0 {
		return priors
	}
	avg, _ := meanMasked(all, nil)
	baseline := avg * 1.005
	if len(base) > 0 {
		baseline, _ = meanMasked(base, nil)
	}
	bottom := avg * 0.995
	if len(dip) > 0 {
		bottom, _ = meanMasked(dip, nil)
	}
	depth := math.Abs((baseline - bottom) / baseline)

	set := func(i int, v float64) {
		if !priors[i].Locked && !math.IsNaN(v) && !math.IsInf(v, 0) {
			priors[i].Center = v
		}
	}
	set(ParamBaseline, baseline)
	set(ParamDepth, depth)
	ar := priors[ParamAR].Center
	if ts.Orbit.Period > 0 && right > left {
		est := (1 + math.Sqrt(depth)) / math.Sin(math.Pi*(right-left)/ts.Orbit.Period)
		set(ParamAR, est)
		if !priors[ParamAR].Locked && !math.IsNaN(est) && !math.IsInf(est, 0) {
			ar = est
		}
	}
	set(ParamTc, (left+right)/2)
	set(ParamInclination, math.Round(10*math.Acos((0.5+math.Sqrt(depth))/ar)/deg)/10)
	return priors
}

// fitTransit jointly fits the transit model and the active detrend regressors.
// It returns nil with a reason when the fit region cannot support the fit.
func fitTransit(fp *fitProblem, ts TransitSettings, priors [NumTransitParams]Prior) (*FitResult, string) {
	nReg := len(fp.names)
	full := make([]float64, NumTransitParams+nReg)
	step := make([]float64, NumTransitParams+nReg)
	seed := func(i int, p Prior) {
		switch i {
		case ParamDepth:
			full[i] = math.Sqrt(p.Center)
			step[i] = math.Sqrt(p.Step)
		case ParamInclination:
			full[i] = p.Center * deg
			step[i] = p.Step * deg
		default:
			full[i] = p.Center
			step[i] = p.Step
		}
	}
	obj := &transitObjective{fp: fp, ts: ts, adjusted: math.NaN()}
	res := &FitResult{Priors: priors, AdjustedInclination: math.NaN()}
	for i, p := range priors {
		seed(i, p)
		free := !p.Locked && !(i == ParamInclination && ts.ImpactLock)
		res.Free[i] = free
		if free {
			obj.freeIdx = append(obj.freeIdx, i)
		}
	}
	for r := 0; r < nReg; r++ {
		p := ts.detrendPrior(r)
		idx := NumTransitParams + r
		if !fp.active[r] {
			continue
		}
		full[idx] = p.Center
		step[idx] = p.Step
		if !p.Locked {
			obj.freeIdx = append(obj.freeIdx, idx)
		}
	}
	if ts.ImpactLock {
		full[ParamInclination] = math.Acos(ts.Impact / full[ParamAR])
	}
	nFree := len(obj.freeIdx)
	if reason := fp.insufficient(nFree); reason != "" {
		return nil, reason
	}

	for i, in := range fp.mask {
		if in {
			obj.rows = append(obj.rows, i)
			obj.xs = append(obj.xs, fp.x[i])
		}
	}
	obj.full = full
	obj.dof = fp.n - nFree
	if obj.dof < 1 {
		obj.dof = 1
	}

	sx := &Simplex{Restarts: 1, Tolerance: ts.Tolerance, MaxIter: ts.MaxIterations}
	start := make([]float64, nFree)
	steps := make([]float64, nFree)
	for k, idx := range obj.freeIdx {
		start[k] = full[idx]
		steps[k] = step[idx]
		if steps[k] == 0 {
			steps[k] = 0.1
		}
		addTransitConstraints(sx, k, idx, priors, ts.detrendPriorAt(idx), start[k])
	}

	out := sx.Minimize(obj.cost, start, steps)
	best := obj.expand(out.X)
	copy(res.Params[:], best[:NumTransitParams])
	res.Detrend = append([]float64(nil), best[NumTransitParams:]...)
	res.NFree = nFree
	res.Converged = out.Converged
	res.Iterations = out.Iterations
	res.Chi2Dof = out.Min
	res.DOF = obj.dof
	res.Samples = fp.n
	res.BIC = BIC(out.Min, fp.n, nFree)
	res.AdjustedInclination = obj.adjusted
	return res, ""
}

func (t *TransitSettings) detrendPriorAt(idx int) Prior {
	if idx < NumTransitParams {
		return Prior{}
	}
	return t.detrendPrior(idx - NumTransitParams)
}

// addTransitConstraints bounds optimizer coordinate k holding full-vector index idx.
func addTransitConstraints(sx *Simplex, k, idx int, priors [NumTransitParams]Prior, dp Prior, start float64) {
	var p Prior
	if idx < NumTransitParams {
		p = priors[idx]
	} else {
		p = dp
	}
	switch idx {
	case ParamBaseline, ParamDepth, ParamTc:
		sx.AddConstraint(k, -1, 0)
	case ParamAR:
		sx.AddConstraint(k, -1, 2)
	case ParamInclination:
		sx.AddConstraint(k, -1, 50*deg)
		sx.AddConstraint(k, 1, 90*deg)
	case ParamU1, ParamU2:
		sx.AddConstraint(k, -1, -1)
		sx.AddConstraint(k, 1, 1)
	}
	if !p.UseWidth {
		return
	}
	switch idx {
	case ParamDepth:
		sx.AddConstraint(k, -1, math.Sqrt(math.Max(0, p.Center-p.Width)))
		sx.AddConstraint(k, 1, math.Sqrt(p.Center+p.Width))
	case ParamInclination:
		sx.AddConstraint(k, -1, start-p.Width*deg)
		sx.AddConstraint(k, 1, start+p.Width*deg)
	default:
		sx.AddConstraint(k, -1, start-p.Width)
		sx.AddConstraint(k, 1, start+p.Width)
	}
}
