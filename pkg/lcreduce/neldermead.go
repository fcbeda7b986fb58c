package lcreduce

import "math"

const (
	reflectCoeff  = 1.0
	expandCoeff   = 2.0
	contractCoeff = 0.5
	shrinkCoeff   = 0.5
	penaltyWeight = 1e30
)

// Constraint keeps parameter Index at or above Bound (Direction -1) or at or below it (Direction +1).
type Constraint struct {
	Index     int
	Direction int
	Bound     float64
}

// Simplex is a Nelder-Mead downhill simplex minimizer with linear inequality constraints.
type Simplex struct {
	Constraints []Constraint
	Restarts    int
	Tolerance   float64
	MaxIter     int
}

// SimplexResult is the outcome of one minimization.
type SimplexResult struct {
	X          []float64
	Min        float64
	Iterations int
	Converged  bool
}

// AddConstraint appends a one-sided bound on parameter index.
func (s *Simplex) AddConstraint(index, direction int, bound float64) {
	s.Constraints = append(s.Constraints, Constraint{Index: index, Direction: direction, Bound: bound})
}

func (s *Simplex) penalty(x []float64) float64 {
	p := 0.0
	for _, c := range s.Constraints {
		v := x[c.Index]
		switch {
		case c.Direction < 0 && v < c.Bound:
			p += c.Bound - v
		case c.Direction > 0 && v > c.Bound:
			p += v - c.Bound
		}
	}
	return p
}

func (s *Simplex) eval(f func([]float64) float64, x []float64) float64 {
	if p := s.penalty(x); p > 0 {
		return penaltyWeight * (1 + p)
	}
	v := f(x)
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

func (s *Simplex) initial(f func([]float64) float64, x0, step []float64) ([][]float64, []float64) {
	n := len(x0)
	pts := make([][]float64, n+1)
	vals := make([]float64, n+1)
	for i := range pts {
		pts[i] = append([]float64(nil), x0...)
		if i > 0 {
			pts[i][i-1] += step[i-1]
		}
		vals[i] = s.eval(f, pts[i])
	}
	return pts, vals
}

// Minimize searches for the minimum of f starting at start with initial simplex
// steps step. The simplex is rebuilt around the best point Restarts times after
// convergence. An initial simplex without any finite cost is returned as is.
func (s *Simplex) Minimize(f func([]float64) float64, start, step []float64) SimplexResult {
	x0 := append([]float64(nil), start...)
	if len(x0) == 0 {
		return SimplexResult{X: x0, Min: f(x0), Converged: true}
	}
	maxIter := s.MaxIter
	if maxIter <= 0 {
		maxIter = 20000
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = 1e-10
	}

	pts, vals := s.initial(f, x0, step)
	if !anyFinite(vals) {
		return SimplexResult{X: x0, Min: math.Inf(1)}
	}

	n := len(x0)
	iter, restarts := 0, 0
	converged := false
	centroid := make([]float64, n)
	for {
		lo, hi, nh := simplexOrder(vals)
		if simplexSpread(vals) < tol {
			if restarts < s.Restarts {
				restarts++
				pts, vals = s.initial(f, append([]float64(nil), pts[lo]...), step)
				continue
			}
			converged = true
			break
		}
		if iter >= maxIter {
			break
		}
		iter++

		for j := range centroid {
			centroid[j] = 0
			for i, p := range pts {
				if i != hi {
					centroid[j] += p[j]
				}
			}
			centroid[j] /= float64(n)
		}

		xr := affine(centroid, pts[hi], -reflectCoeff)
		yr := s.eval(f, xr)
		switch {
		case yr < vals[lo]:
			xe := affine(centroid, xr, expandCoeff)
			if ye := s.eval(f, xe); ye < yr {
				pts[hi], vals[hi] = xe, ye
			} else {
				pts[hi], vals[hi] = xr, yr
			}
		case yr < vals[nh]:
			pts[hi], vals[hi] = xr, yr
		default:
			if yr < vals[hi] {
				pts[hi], vals[hi] = xr, yr
			}
			xc := affine(centroid, pts[hi], contractCoeff)
			if yc := s.eval(f, xc); yc < vals[hi] {
				pts[hi], vals[hi] = xc, yc
				break
			}
			for i := range pts {
				if i == lo {
					continue
				}
				pts[i] = affine(pts[lo], pts[i], shrinkCoeff)
				vals[i] = s.eval(f, pts[i])
			}
		}
	}

	lo, _, _ := simplexOrder(vals)
	return SimplexResult{X: pts[lo], Min: vals[lo], Iterations: iter, Converged: converged}
}

// affine returns c + k*(p - c).
func affine(c, p []float64, k float64) []float64 {
	out := make([]float64, len(c))
	for i := range c {
		out[i] = c[i] + k*(p[i]-c[i])
	}
	return out
}

func simplexOrder(vals []float64) (lo, hi, nh int) {
	for i, v := range vals {
		if v < vals[lo] {
			lo = i
		}
		if v > vals[hi] {
			hi = i
		}
	}
	nh = lo
	for i, v := range vals {
		if i != hi && v > vals[nh] {
			nh = i
		}
	}
	return lo, hi, nh
}

// simplexSpread is the standard deviation of the vertex values; NaN when any is infinite.
func simplexSpread(vals []float64) float64 {
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vals)))
}

func anyFinite(vals []float64) bool {
	for _, v := range vals {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			return true
		}
	}
	return false
}
