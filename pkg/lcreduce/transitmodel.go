/*
Quadratic limb-darkened occultation after EXOFAST occultquad
(Mandel & Agol 2002; Eastman, Gaudi & Agol 2013).
Ported to Go.
*/

package lcreduce

import "math"

// ModelParams are the physical transit parameters. Inclination is in radians.
type ModelParams struct {
	F0          float64
	P0          float64 // planet to star radius ratio
	AR          float64
	Tc          float64
	Inclination float64
	U1, U2      float64
}

// ParamsFromVector maps the optimizer's 7-parameter vector to ModelParams.
func ParamsFromVector(v []float64) ModelParams {
	return ModelParams{
		F0:          v[ParamBaseline],
		P0:          v[ParamDepth],
		AR:          v[ParamAR],
		Tc:          v[ParamTc],
		Inclination: v[ParamInclination],
		U1:          v[ParamU1],
		U2:          v[ParamU2],
	}
}

// TransitModel evaluates the primary-transit light curve at times t.
// Points on the far side of the orbit return the baseline.
func TransitModel(t []float64, p ModelParams, orbit Orbit) []float64 {
	e := orbit.Eccentricity
	omega := orbit.omega()
	tp := p.Tc - orbit.Period*tcPhase(e, omega)
	sky, depth := skySeparation(t, p.Inclination, p.AR, tp, orbit.Period, e, omega)

	out := make([]float64, len(t))
	pr := math.Abs(p.P0)
	norm := 1 - p.U1/3 - p.U2/6
	for i := range t {
		if depth[i] <= 0 {
			out[i] = p.F0
			continue
		}
		le, ld, ed := occultQuad(pr, sky[i])
		inside := 0.0
		if pr > sky[i] {
			inside = 1
		}
		dip := ((1-p.U1-2*p.U2)*le + (p.U1+2*p.U2)*(ld+2.0/3.0*inside) + p.U2*ed) / norm
		if p.P0 > 0 {
			out[i] = (1 - dip) * p.F0
		} else {
			out[i] = (1 + dip) * p.F0
		}
	}
	return out
}

// occultQuad returns the uniform-disk occulted fraction lambdaE and the
// limb-darkening terms lambdaD and etaD for radius ratio p at separation z.
func occultQuad(p, z float64) (lambdaE, lambdaD, etaD float64) {
	const tol = 1e-14
	switch {
	case math.Abs(p-z) < tol:
		z = p
	case math.Abs((p-1)-z) < tol:
		z = p - 1
	case math.Abs((1-p)-z) < tol:
		z = 1 - p
	case z < tol:
		z = 0
	}
	p2 := p * p
	z2 := z * z
	x1 := (p - z) * (p - z)
	x2 := (p + z) * (p + z)
	x3 := p2 - z2

	// unocculted
	if z >= 1+p || p <= 0 {
		return 0, 0, 0
	}
	// star fully covered
	if p >= 1 && z <= p-1 {
		return 1, 0, 0.5
	}

	// partial overlap, uniform disk
	if z >= math.Abs(1-p) && z < 1+p {
		kap1 := clampedAcos((1 - p2 + z2) / 2 / z)
		kap0 := clampedAcos((p2 + z2 - 1) / 2 / p / z)
		arg := 1 + z2 - p2
		arg = 4*z2 - arg*arg
		if arg < 0 {
			arg = 0
		}
		lambdaE = (p2*kap0 + kap1 - 0.5*math.Sqrt(arg)) / math.Pi
		etaD = 1 / 2.0 / math.Pi * (kap1 + p2*(p2+2*z2)*kap0 - (1+5*p2+z2)/4*math.Sqrt((1-x1)*(x2-1)))
	}

	// planet edge crosses the stellar centre
	if z == p {
		switch {
		case p < 0.5:
			ek, kk := ellke(2 * p)
			lambdaD = 1.0/3.0 + 2.0/9.0/math.Pi*(4*(2*p2-1)*ek+(1-4*p2)*kk)
			etaD = 3 * p2 * p2 / 2
			lambdaE = p2
		case p > 0.5:
			ek, kk := ellke(0.5 / p)
			lambdaD = 1.0/3.0 + 16*p/9.0/math.Pi*(2*p2-1)*ek - (32*p2*p2-20*p2+3)/9.0/math.Pi/p*kk
		default:
			lambdaD = 1.0/3.0 - 4.0/math.Pi/9.0
			etaD = 3.0 / 32.0
		}
		return lambdaE, lambdaD, etaD
	}

	// ingress and egress
	if (z > 0.5+math.Abs(p-0.5) && z < 1+p) || (p > 0.5 && z > math.Abs(1-p) && z < p) {
		q := math.Sqrt((1 - x1) / (x2 - x1))
		ek, kk := ellke(q)
		n := 1/x1 - 1
		lambdaD = 2.0 / 9.0 / math.Pi / math.Sqrt(x2-x1) *
			(((1-x2)*(2*x2+x1-3)-3*x3*(x2-2))*kk + (x2-x1)*(z2+7*p2-4)*ek - 3*x3/x1*ellpicBulirsch(n, q))
		return lambdaE, lambdaD, etaD
	}

	// planet fully inside the disk
	if p < 1 && z <= 1-p {
		etaD = p2 / 2 * (p2 + 2*z2)
		lambdaE = p2
		switch {
		case z == 1-p:
			big := 0.0
			if p > 0.5 {
				big = 1
			}
			lambdaD = 2.0/3.0/math.Pi*math.Acos(1-2*p) - 4.0/9.0/math.Pi*math.Sqrt(p*(1-p))*(3+2*p-8*p2) - 2.0/3.0*big
		case z == 0:
			lambdaD = -2.0 / 3.0 * math.Pow(1-p2, 1.5)
		default:
			q := math.Sqrt((x2 - x1) / (1 - x1))
			n := x2/x1 - 1
			ek, kk := ellke(q)
			lambdaD = 2.0 / 9.0 / math.Pi / math.Sqrt(1-x1) *
				((1-5*z2+p2+x3*x3)*kk + (1-x1)*(z2+7*p2-4)*ek - 3*x3/x1*ellpicBulirsch(n, q))
		}
	}
	return lambdaE, lambdaD, etaD
}

func clampedAcos(x float64) float64 {
	switch {
	case x < -1:
		return math.Pi
	case x > 1:
		return 0
	}
	return math.Acos(x)
}

// ellke returns Hastings' polynomial approximations of the complete elliptic
// integrals of the second (ek) and first (kk) kind for modulus k.
func ellke(k float64) (ek, kk float64) {
	const (
		a1, a2, a3, a4     = 0.44325141463, 0.06260601220, 0.04757383546, 0.01736506451
		b1, b2, b3, b4     = 0.24998368310, 0.09200180037, 0.04069697526, 0.00526449639
		aa0, aa1, aa2, aa3 = 1.38629436112, 0.09666344259, 0.03590092383, 0.03742563713
		aa4                = 0.01451196212
		bb0, bb1, bb2, bb3 = 0.5, 0.12498593597, 0.06880248576, 0.03328355346
		bb4                = 0.00441787012
	)
	m1 := 1 - k*k
	logm1 := math.Log(m1)

	ee1 := 1 + m1*(a1+m1*(a2+m1*(a3+m1*a4)))
	ee2 := m1 * (b1 + m1*(b2+m1*(b3+m1*b4))) * (-logm1)
	ek = ee1 + ee2

	ek1 := aa0 + m1*(aa1+m1*(aa2+m1*(aa3+m1*aa4)))
	ek2 := (bb0 + m1*(bb1+m1*(bb2+m1*(bb3+m1*bb4)))) * logm1
	kk = ek1 - ek2
	return ek, kk
}

// ellpicBulirsch is the complete elliptic integral of the third kind (Bulirsch 1965).
func ellpicBulirsch(n, k float64) float64 {
	kc := math.Sqrt(1 - k*k)
	p := math.Sqrt(n + 1)
	m0 := 1.0
	c := 1.0
	d := 1 / p
	e := kc
	for i := 0; i <= 20; i++ {
		f := c
		c = d/p + c
		g := e / p
		d = 2 * (f*g + d)
		p = g + p
		g = m0
		m0 = kc + m0
		if math.Abs(1-kc/g) <= 1e-8 {
			break
		}
		kc = 2 * math.Sqrt(e)
		e = kc * m0
	}
	return 0.5 * math.Pi * (c*m0 + d) / (m0 * (m0 + p))
}

// tcPhase is the orbital phase (mean anomaly / 2pi) of mid-transit measured from periastron.
func tcPhase(e, omega float64) float64 {
	trueAnom := math.Pi/2 - omega
	eccAnom := 2 * math.Atan(math.Sqrt((1-e)/(1+e))*math.Tan(trueAnom/2))
	m := eccAnom - e*math.Sin(eccAnom)
	phase := m / (2 * math.Pi)
	if phase < 0 {
		phase++
	}
	return phase
}

// skySeparation returns the projected star-planet separation in stellar radii and
// the line-of-sight coordinate, positive when the planet is in front of the star.
func skySeparation(t []float64, incl, ar, tp, period, e, omega float64) (sep, depth []float64) {
	sep = make([]float64, len(t))
	depth = make([]float64, len(t))
	cosI, sinI := math.Cos(incl), math.Sin(incl)
	for i, ti := range t {
		meanAnom := math.Mod(2*math.Pi*(1+(ti-tp)/period), 2*math.Pi)
		trueAnom := meanAnom
		if e != 0 {
			eccAnom := solveKepler(meanAnom, e)
			trueAnom = 2 * math.Atan(math.Sqrt((1+e)/(1-e))*math.Tan(eccAnom/2))
		}
		r := ar * (1 - e*e) / (1 + e*math.Cos(trueAnom))
		x := -r * math.Cos(trueAnom+omega)
		tmp := r * math.Sin(trueAnom+omega)
		y := -tmp * cosI
		sep[i] = math.Sqrt(x*x + y*y)
		depth[i] = tmp * sinI
	}
	return sep, depth
}

// solveKepler solves M = E - e sin E for E by Newton iteration.
func solveKepler(m, e float64) float64 {
	m = math.Mod(m, 2*math.Pi)
	if m < 0 {
		m += 2 * math.Pi
	}
	eccAnom := m
	if e > 0.8 {
		eccAnom = math.Pi
	}
	for i := 0; i < 100; i++ {
		delta := (eccAnom - e*math.Sin(eccAnom) - m) / (1 - e*math.Cos(eccAnom))
		eccAnom -= delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}
	return eccAnom
}
