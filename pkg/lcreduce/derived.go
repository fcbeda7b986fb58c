package lcreduce

import (
	"fmt"
	"math"
)

// Statistics are the scalar outputs of one curve.
type Statistics struct {
	Samples        int
	FitSamples     int
	Sigma          float64 // RMS of residuals in the fit region
	RMS            float64 // Sigma relative to the baseline
	Chi2Dof        float64
	BIC            float64
	DOF            int
	Converged      bool
	Fitted         bool
	Depth          float64 // ppt
	Impact         float64
	T14            float64 // days
	T23            float64 // days
	Tau            float64 // days
	StellarDensity float64 // g/cm^3
	PlanetRadius   float64 // Jupiter radii, NaN when unknown
	SpectralType   string
}

// ImpactParameter is the sky-projected separation at conjunction in stellar radii.
func ImpactParameter(ar, incl float64, orbit Orbit) float64 {
	e, w := orbit.Eccentricity, orbit.omega()
	return ar * math.Cos(incl) * (1 - e*e) / (1 + e*math.Sin(w))
}

// Durations returns the total (t14) and full (t23) transit durations and the
// ingress time tau. Values whose geometry is undefined are NaN.
func Durations(p, ar, incl, b float64, orbit Orbit) (t14, t23, tau float64) {
	e, w := orbit.Eccentricity, orbit.omega()
	ecc := math.Sqrt(1-e*e) / (1 + e*math.Sin(w))
	dur := func(k float64) float64 {
		arg := k*k - b*b
		if arg < 0 {
			return math.NaN()
		}
		s := math.Sqrt(arg) / (math.Sin(incl) * ar)
		if s > 1 || s < -1 {
			return math.NaN()
		}
		return orbit.Period / math.Pi * math.Asin(s) * ecc
	}
	t14 = dur(1 + p)
	t23 = dur(1 - p)
	return t14, t23, (t14 - t23) / 2
}

// StellarDensity applies Seager & Mallen-Ornelas (2003) to the transit shape.
// Period in days, result in g/cm^3.
func StellarDensity(p, b, t14, period float64) float64 {
	s := math.Sin(math.Pi * t14 / period)
	s2 := s * s
	return 0.0189 / (period * period) * math.Pow(((1+p)*(1+p)-b*b*(1-s2))/s2, 1.5)
}

// BIC is the Bayesian information criterion for k free parameters over n samples.
func BIC(chi2dof float64, n, k int) float64 {
	return chi2dof*float64(n-k) + float64(k)*math.Log(float64(n))
}

// TransitDepth is the model depth at mid-transit in parts per thousand.
func TransitDepth(p ModelParams, orbit Orbit) float64 {
	mid := TransitModel([]float64{p.Tc}, p, orbit)[0]
	return (1 - mid/p.F0) * 1000
}

// Display formats the statistics for a renderer. Fitted quantities of a
// non-converged fit carry a "(not converged)" suffix.
func (s Statistics) Display() map[string]string {
	out := map[string]string{
		"samples": fmt.Sprintf("%d", s.Samples),
		"sigma":   formatStat(s.Sigma, "%.6f"),
		"rms":     formatStat(s.RMS*1000, "%.3f ppt"),
	}
	if s.FitSamples > 0 {
		out["fit_samples"] = fmt.Sprintf("%d", s.FitSamples)
	}
	if !s.Fitted {
		return out
	}
	mark := ""
	if !s.Converged {
		mark = " (not converged)"
	}
	fitted := map[string]string{
		"chi2dof":         formatStat(s.Chi2Dof, "%.4f"),
		"bic":             formatStat(s.BIC, "%.2f"),
		"dof":             fmt.Sprintf("%d", s.DOF),
		"depth":           formatStat(s.Depth, "%.2f ppt"),
		"impact":          formatStat(s.Impact, "%.3f"),
		"t14":             formatDuration(s.T14),
		"t23":             formatDuration(s.T23),
		"tau":             formatDuration(s.Tau),
		"stellar_density": formatStat(s.StellarDensity, "%.3f g/cm^3"),
		"planet_radius":   formatStat(s.PlanetRadius, "%.3f RJ"),
	}
	for k, v := range fitted {
		out[k] = v + mark
	}
	if s.SpectralType != "" {
		out["spectral_type"] = s.SpectralType
	}
	return out
}

func formatStat(v float64, layout string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NaN"
	}
	return fmt.Sprintf(layout, v)
}

// formatDuration shows days as h:mm.
func formatDuration(days float64) string {
	if math.IsNaN(days) || math.IsInf(days, 0) {
		return "NaN"
	}
	mins := int(math.Round(days * 24 * 60))
	return fmt.Sprintf("%d:%02d", mins/60, mins%60)
}
