package lcreduce

import (
	"fmt"
	"math"
	"sort"
)

// MainSequenceStar is one row of the main-sequence parameter table.
type MainSequenceStar struct {
	SpType  string
	Teff    float64 // K
	JminusK float64
	Radius  float64 // solar radii
	Mass    float64 // solar masses
	Density float64 // solar units
	RadiusJ float64 // Jupiter radii
}

// MainSequence is ordered from hottest to coolest.
var MainSequence = []MainSequenceStar{
	{"O8V", 37000, -0.19, 8.50, 23.00, 0.05, 82.62},
	{"B0V", 31500, -0.16, 7.40, 17.50, 0.06, 71.93},
	{"B3V", 19000, -0.10, 4.80, 7.60, 0.10, 46.66},
	{"B5V", 15400, -0.07, 3.90, 5.90, 0.14, 37.91},
	{"B8V", 11800, -0.03, 3.00, 3.80, 0.20, 29.16},
	{"A0V", 9480, 0.00, 2.40, 2.90, 0.28, 23.33},
	{"A5V", 8160, 0.08, 1.70, 2.00, 0.56, 16.52},
	{"F0V", 7020, 0.16, 1.50, 1.60, 0.71, 14.58},
	{"F5V", 6530, 0.27, 1.30, 1.40, 0.89, 12.64},
	{"G0V", 5930, 0.36, 1.10, 1.05, 1.00, 10.69},
	{"G5V", 5680, 0.41, 0.92, 0.92, 1.12, 8.94},
	{"K0V", 5240, 0.53, 0.85, 0.79, 1.77, 8.26},
	{"K5V", 4340, 0.72, 0.72, 0.67, 2.50, 7.00},
	{"M0V", 3800, 0.84, 0.60, 0.51, 3.15, 5.83},
	{"M2V", 3530, 0.86, 0.50, 0.40, 8.88, 4.86},
	{"M5V", 3120, 0.95, 0.27, 0.21, 14.08, 2.62},
	{"M8V", 2600, 1.14, 0.15, 0.06, 22.32, 1.46},
}

const (
	solarDensity    = 1.408 // g/cm^3
	jupiterPerSolar = 9.731
	earthPerJupiter = 11.209
)

// interpolate linearly maps key to value over the table, which may be sorted
// either way by key. ok is false outside the tabulated range.
func interpolate(key float64, keyOf, valueOf func(MainSequenceStar) float64) (float64, bool) {
	rows := make([]MainSequenceStar, len(MainSequence))
	copy(rows, MainSequence)
	sort.Slice(rows, func(i, j int) bool { return keyOf(rows[i]) < keyOf(rows[j]) })
	lo, hi := keyOf(rows[0]), keyOf(rows[len(rows)-1])
	if math.IsNaN(key) || key < lo || key > hi {
		return math.NaN(), false
	}
	i := sort.Search(len(rows), func(i int) bool { return keyOf(rows[i]) >= key })
	if keyOf(rows[i]) == key || i == 0 {
		return valueOf(rows[i]), true
	}
	k0, k1 := keyOf(rows[i-1]), keyOf(rows[i])
	v0, v1 := valueOf(rows[i-1]), valueOf(rows[i])
	return v0 + (v1-v0)*(key-k0)/(k1-k0), true
}

// StellarRadiusFromTeff interpolates the main-sequence radius in solar radii.
func StellarRadiusFromTeff(teff float64) (float64, bool) {
	return interpolate(teff,
		func(s MainSequenceStar) float64 { return s.Teff },
		func(s MainSequenceStar) float64 { return s.Radius })
}

// PlanetRadiusFromTeff returns the planet radius in Jupiter radii for radius
// ratio p around a main-sequence star of temperature teff. It is NaN for an
// unknown temperature, non-positive p or a temperature outside the table;
// DescribePlanetRadius reports bounds for the latter.
func PlanetRadiusFromTeff(teff, p float64) float64 {
	if math.IsNaN(teff) || math.IsNaN(p) || p <= 0 {
		return math.NaN()
	}
	rj, ok := interpolate(teff,
		func(s MainSequenceStar) float64 { return s.Teff },
		func(s MainSequenceStar) float64 { return s.RadiusJ })
	if !ok {
		return math.NaN()
	}
	return p * rj
}

// PlanetRadiusFromStar returns the planet radius in Jupiter radii for a host radius in solar radii.
func PlanetRadiusFromStar(radius, p float64) float64 {
	if radius <= 0 || p <= 0 {
		return math.NaN()
	}
	return p * radius * jupiterPerSolar
}

// JupiterToEarth converts Jupiter radii to Earth radii.
func JupiterToEarth(rj float64) float64 { return rj * earthPerJupiter }

// DescribePlanetRadius renders the planet radius with bounds when teff is off the table.
func DescribePlanetRadius(teff, p float64) string {
	first, last := MainSequence[0], MainSequence[len(MainSequence)-1]
	switch {
	case math.IsNaN(teff) || p <= 0:
		return "NaN"
	case teff > first.Teff:
		return fmt.Sprintf(">%.3f RJ", p*first.RadiusJ)
	case teff < last.Teff:
		return fmt.Sprintf("<%.3f RJ", p*last.RadiusJ)
	}
	rj := PlanetRadiusFromTeff(teff, p)
	return fmt.Sprintf("%.3f RJ (%.2f RE)", rj, JupiterToEarth(rj))
}

// SpectralTypeFromTeff picks the table row whose temperature range holds teff,
// splitting ranges at the midpoint between neighbours.
func SpectralTypeFromTeff(teff float64) string {
	return nearestType(teff, func(s MainSequenceStar) float64 { return s.Teff })
}

// SpectralTypeFromDensity does the same for a stellar density in g/cm^3.
func SpectralTypeFromDensity(rho float64) string {
	return nearestType(rho/solarDensity, func(s MainSequenceStar) float64 { return s.Density })
}

func nearestType(key float64, keyOf func(MainSequenceStar) float64) string {
	if math.IsNaN(key) || math.IsInf(key, 0) {
		return ""
	}
	best := 0
	for i := 1; i < len(MainSequence); i++ {
		if math.Abs(keyOf(MainSequence[i])-key) < math.Abs(keyOf(MainSequence[best])-key) {
			best = i
		}
	}
	return MainSequence[best].SpType
}
