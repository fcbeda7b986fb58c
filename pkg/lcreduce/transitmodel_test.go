package lcreduce_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/lcreduce"
)

func centralTransit(p0 float64) lcreduce.ModelParams {
	return lcreduce.ModelParams{F0: 1, P0: p0, AR: 10, Tc: 2456500, Inclination: math.Pi / 2}
}

// TestTransitModelCentreDepth: without limb darkening a central transit dips by p^2.
func TestTransitModelCentreDepth(t *testing.T) {
	orbit := lcreduce.Orbit{Period: 3}
	p := centralTransit(0.1)
	flux := lcreduce.TransitModel([]float64{p.Tc, p.Tc + 1.5}, p, orbit)
	require.Len(t, flux, 2)
	assert.InDelta(t, 0.99, flux[0], 1e-9, "depth is p^2 at mid-transit")
	assert.Equal(t, 1.0, flux[1], "far side of the orbit returns the baseline")
	assert.InDelta(t, 10.0, lcreduce.TransitDepth(p, orbit), 1e-6, "depth in ppt")
}

// TestTransitModelAntiTransit: a negative radius ratio brightens.
func TestTransitModelAntiTransit(t *testing.T) {
	p := centralTransit(-0.1)
	flux := lcreduce.TransitModel([]float64{p.Tc}, p, lcreduce.Orbit{Period: 3})
	assert.InDelta(t, 1.01, flux[0], 1e-9)
}

// TestTransitModelLimbDarkening deepens the centre of the transit.
func TestTransitModelLimbDarkening(t *testing.T) {
	p := centralTransit(0.1)
	p.U1, p.U2 = 0.4, 0.2
	flux := lcreduce.TransitModel([]float64{p.Tc}, p, lcreduce.Orbit{Period: 3})
	assert.Less(t, flux[0], 0.99, "limb-darkened centre is darker than the mean disk")
	assert.Greater(t, flux[0], 0.98)
}

// TestTransitModelEccentric keeps mid-transit at Tc for eccentric orbits.
func TestTransitModelEccentric(t *testing.T) {
	p := centralTransit(0.1)
	orbit := lcreduce.Orbit{Period: 3, Eccentricity: 0.3, OmegaDeg: 40}
	flux := lcreduce.TransitModel([]float64{p.Tc - 0.2, p.Tc, p.Tc + 0.2}, p, orbit)
	assert.InDelta(t, 0.99, flux[1], 1e-6)
	assert.Equal(t, 1.0, flux[0], "outside the transit window")
	assert.Equal(t, 1.0, flux[2], "outside the transit window")
}

// TestDurationsOrdering: t14 >= t23 >= 0 for a grazing-free geometry.
func TestDurationsOrdering(t *testing.T) {
	orbit := lcreduce.Orbit{Period: 3}
	incl := 89.0 * math.Pi / 180
	b := lcreduce.ImpactParameter(10, incl, orbit)
	t14, t23, tau := lcreduce.Durations(0.1, 10, incl, b, orbit)
	assert.GreaterOrEqual(t, t14, t23)
	assert.GreaterOrEqual(t, t23, 0.0)
	assert.InDelta(t, (t14-t23)/2, tau, 1e-15)
	assert.InDelta(t, 3.0/math.Pi*math.Asin(math.Sqrt(1.1*1.1-b*b)/(10*math.Sin(incl))), t14, 1e-12)

	_, t23, _ = lcreduce.Durations(0.1, 10, incl, 0.95, orbit)
	assert.True(t, math.IsNaN(t23), "grazing transit has no flat bottom")
}

// TestBIC matches chi2*(n-k) + k ln n.
func TestBIC(t *testing.T) {
	assert.InDelta(t, 16+2*math.Log(10), lcreduce.BIC(2, 10, 2), 1e-12)
}

// TestStatisticsDisplay flags fitted values of non-converged fits.
func TestStatisticsDisplay(t *testing.T) {
	st := lcreduce.Statistics{Samples: 3, Fitted: true, Converged: false, Chi2Dof: 1.5, T14: 1.0 / 12}
	d := st.Display()
	assert.True(t, strings.HasSuffix(d["chi2dof"], "(not converged)"))
	assert.Equal(t, "2:00 (not converged)", d["t14"])
	assert.Equal(t, "3", d["samples"], "unfitted values carry no suffix")

	st.Converged = true
	assert.Equal(t, "1.5000", st.Display()["chi2dof"])
}

// TestStellarTable covers interpolation, bounds and type lookups.
func TestStellarTable(t *testing.T) {
	r, ok := lcreduce.StellarRadiusFromTeff(5930)
	require.True(t, ok)
	assert.InDelta(t, 1.10, r, 1e-12)

	r, ok = lcreduce.StellarRadiusFromTeff((5930 + 5680) / 2.0)
	require.True(t, ok)
	assert.InDelta(t, (1.10+0.92)/2, r, 1e-12, "linear between rows")

	_, ok = lcreduce.StellarRadiusFromTeff(50000)
	assert.False(t, ok, "hotter than the table")

	assert.InDelta(t, 1.069, lcreduce.PlanetRadiusFromTeff(5930, 0.1), 1e-12)
	assert.True(t, math.IsNaN(lcreduce.PlanetRadiusFromTeff(1000, 0.1)), "cooler than the table")
	assert.True(t, math.IsNaN(lcreduce.PlanetRadiusFromTeff(50000, 0.1)), "hotter than the table")
	off := lcreduce.Statistics{Fitted: true, Converged: true, PlanetRadius: lcreduce.PlanetRadiusFromTeff(1000, 0.1)}
	assert.Equal(t, "NaN", off.Display()["planet_radius"], "no radius shown for an off-table star")
	assert.True(t, math.IsNaN(lcreduce.PlanetRadiusFromTeff(5930, 0)))
	assert.InDelta(t, 0.9731, lcreduce.PlanetRadiusFromStar(1, 0.1), 1e-12)

	assert.Equal(t, "G0V", lcreduce.SpectralTypeFromTeff(5900))
	assert.Equal(t, "G0V", lcreduce.SpectralTypeFromDensity(1.408))
	assert.Equal(t, ">8.262 RJ", lcreduce.DescribePlanetRadius(40000, 0.1))
	assert.Equal(t, "", lcreduce.SpectralTypeFromDensity(math.NaN()))
}
