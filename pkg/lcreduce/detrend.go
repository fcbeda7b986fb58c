package lcreduce

import (
	"math"
)

// MeridianFlipRegressor is synthesized as -1 before the flip time and +1 after it.
const MeridianFlipRegressor = "Meridian_Flip"

// fitProblem holds one curve's samples prepared for detrending or transit fitting.
type fitProblem struct {
	x, y, yErr []float64
	names      []string
	regs       [][]float64 // centred and power-raised; nil when the column is missing
	active     []bool      // regressors entering the fit
	mask       []bool      // fit region
	n          int
	yAvg       float64
}

// newFitProblem selects the fit region and prepares the regressors. With
// keepConstant set, regressors that are constant in the region stay active.
func newFitProblem(s *Series, names []string, markers Markers, region Region, keepConstant bool) *fitProblem {
	fp := &fitProblem{
		x:      s.X,
		y:      s.Y,
		yErr:   s.YErr,
		names:  names,
		regs:   make([][]float64, len(names)),
		active: make([]bool, len(names)),
		mask:   make([]bool, s.Len()),
	}
	for i := range fp.mask {
		if math.IsNaN(s.X[i]) || math.IsNaN(s.Y[i]) || !markers.Contains(region, s.X[i]) {
			continue
		}
		ok := true
		for _, r := range s.Regressors {
			if r != nil && math.IsNaN(r[i]) {
				ok = false
				break
			}
		}
		fp.mask[i] = ok
	}
	fp.n = countTrue(fp.mask)
	fp.yAvg, _ = meanMasked(s.Y, fp.mask)

	for i, name := range names {
		base := s.Regressors[i]
		if base == nil {
			continue
		}
		if name == MeridianFlipRegressor {
			fp.regs[i] = base
		} else {
			power := 1
			for _, prev := range names[:i] {
				if prev == name {
					power++
				}
			}
			fp.regs[i] = centre(base, fp.mask)
			if power > 1 {
				raised := make([]float64, len(base))
				for j, v := range fp.regs[i] {
					raised[j] = math.Pow(v, float64(power))
				}
				fp.regs[i] = centre(raised, fp.mask)
			}
		}
		fp.active[i] = keepConstant || !isConstant(fp.regs[i], fp.mask)
	}
	return fp
}

// centre subtracts the masked mean.
func centre(values []float64, mask []bool) []float64 {
	m, n := meanMasked(values, mask)
	if n == 0 {
		m = 0
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v - m
	}
	return out
}

// meridianFlip builds the -1/+1 step regressor.
func meridianFlip(x []float64, flip float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v < flip {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

func (fp *fitProblem) activeCount() int { return countTrue(fp.active) }

// dropped lists regressors that do not enter the fit.
func (fp *fitProblem) dropped() []string {
	var out []string
	for i, a := range fp.active {
		if !a {
			out = append(out, fp.names[i])
		}
	}
	return out
}

// sigma is the per-sample weight, falling back to 1 for unusable errors.
func (fp *fitProblem) sigma(i int) float64 {
	e := fp.yErr[i]
	if math.IsNaN(e) || e <= 0 {
		return 1
	}
	return e
}

// insufficient explains why the region cannot support extra free parameters.
func (fp *fitProblem) insufficient(free int) string {
	if fp.n <= free+2 {
		return "insufficient samples in fit region"
	}
	if isConstant(fp.y, fp.mask) {
		return "data constant in fit region"
	}
	return ""
}

// DetrendOutcome is the coefficient set of a plain (non-transit) detrend.
type DetrendOutcome struct {
	Coefficients []float64
	Fitted       bool
	Reason       string
	Iterations   int
	Converged    bool
}

// solveDetrend finds coefficients for the active regressors by linear
// regression with intercept or by minimizing chi-square with Nelder-Mead.
func (fp *fitProblem) solveDetrend(nelderMead bool) DetrendOutcome {
	out := DetrendOutcome{Coefficients: make([]float64, len(fp.names))}
	used := fp.activeIndices()
	if len(used) == 0 {
		out.Reason = "no usable regressors"
		return out
	}
	if reason := fp.insufficient(len(used)); reason != "" {
		out.Reason = reason
		return out
	}

	if nelderMead {
		dof := fp.n - len(used)
		if dof < 1 {
			dof = 1
		}
		cost := func(c []float64) float64 {
			chi2 := 0.0
			for i, in := range fp.mask {
				if !in {
					continue
				}
				res := fp.y[i] - fp.yAvg
				for k, idx := range used {
					res -= c[k] * fp.regs[idx][i]
				}
				s := fp.sigma(i)
				chi2 += res * res / (s * s)
			}
			return chi2 / float64(dof)
		}
		step := fill(len(used), 1)
		sx := &Simplex{Tolerance: 1e-10, MaxIter: 20000}
		r := sx.Minimize(cost, make([]float64, len(used)), step)
		for k, idx := range used {
			out.Coefficients[idx] = r.X[k]
		}
		out.Fitted, out.Iterations, out.Converged = true, r.Iterations, r.Converged
		return out
	}

	design := make([][]float64, 0, fp.n)
	resp := make([]float64, 0, fp.n)
	for i, in := range fp.mask {
		if !in {
			continue
		}
		row := make([]float64, len(used)+1)
		row[0] = 1
		for k, idx := range used {
			row[k+1] = fp.regs[idx][i]
		}
		design = append(design, row)
		resp = append(resp, fp.y[i]-fp.yAvg)
	}
	coeffs, ok := solveLeastSquares(design, resp)
	if !ok {
		out.Reason = "singular regression"
		return out
	}
	for k, idx := range used {
		out.Coefficients[idx] = coeffs[k+1]
	}
	out.Fitted, out.Converged = true, true
	return out
}

func (fp *fitProblem) activeIndices() []int {
	var out []int
	for i, a := range fp.active {
		if a {
			out = append(out, i)
		}
	}
	return out
}

// trend evaluates sum(c_k * r_k) at every sample.
func (fp *fitProblem) trend(coeffs []float64) []float64 {
	out := make([]float64, len(fp.y))
	for k, c := range coeffs {
		if c == 0 || fp.regs[k] == nil {
			continue
		}
		for i := range out {
			out[i] += c * fp.regs[k][i]
		}
	}
	return out
}

// applyTrend removes the trend from y and rescales yErr. In divide mode the
// series is divided by (yAvg+trend)/yAvg instead.
func applyTrend(y, yErr, trend []float64, yAvg float64, divide bool) ([]float64, []float64) {
	outY := append([]float64(nil), y...)
	outE := append([]float64(nil), yErr...)
	for i, t := range trend {
		if t == 0 {
			continue
		}
		if divide && yAvg != 0 && !math.IsNaN(yAvg) {
			f := (yAvg + t) / yAvg
			outY[i] /= f
			outE[i] /= f
			continue
		}
		if y[i] != 0 {
			outE[i] *= math.Abs((y[i] - t) / y[i])
		}
		outY[i] -= t
	}
	return outY, outE
}
