package lcreduce

import (
	"fmt"
	"math"
)

// BinByWidth groups samples into fixed-width bins of x starting at the first
// finite x. Each bin reports the mean x and y and the quadrature error divided
// by its count. Empty bins are skipped. x must be ascending.
func BinByWidth(x, y, yErr []float64, width float64) (bx, by, be []float64) {
	if width <= 0 || len(x) == 0 {
		return append([]float64(nil), x...), append([]float64(nil), y...), append([]float64(nil), yErr...)
	}
	origin := math.NaN()
	current := -1
	var sx, sy, se float64
	n := 0
	flush := func() {
		if n == 0 {
			return
		}
		bx = append(bx, sx/float64(n))
		by = append(by, sy/float64(n))
		be = append(be, math.Sqrt(se)/float64(n))
		sx, sy, se, n = 0, 0, 0, 0
	}
	for i, xi := range x {
		if math.IsNaN(xi) || math.IsNaN(y[i]) {
			continue
		}
		if math.IsNaN(origin) {
			origin = xi
		}
		bin := int(math.Floor((xi - origin) / width))
		if bin != current {
			flush()
			current = bin
		}
		sx += xi
		sy += y[i]
		if yErr != nil {
			se += yErr[i] * yErr[i]
		}
		n++
	}
	flush()
	return bx, by, be
}

// XAxisMode selects how sample times are presented.
type XAxisMode int

const (
	XAxisTime XAxisMode = iota
	XAxisPhase
	XAxisDaysSinceTc
	XAxisHoursSinceTc
)

var xAxisNames = []string{"time", "phase", "days", "hours"}

func (m XAxisMode) String() string { return enumName(xAxisNames, int(m), "XAxisMode") }

// ParseXAxisMode maps a configuration string to an XAxisMode.
func ParseXAxisMode(s string) (XAxisMode, error) {
	i, err := parseEnum(xAxisNames, s, "x axis mode")
	return XAxisMode(i), err
}

// XAxis folds output times on an ephemeris.
type XAxis struct {
	Mode   XAxisMode
	T0     float64
	Period float64
}

// Validate checks that folding modes carry a usable period.
func (a XAxis) Validate() error {
	if a.Mode != XAxisTime && !(a.Period > 0) {
		return fmt.Errorf("x axis %v requires a positive period", a.Mode)
	}
	return nil
}

// Apply returns the presented x values. Phase lies in [-0.5, 0.5).
func (a XAxis) Apply(x []float64) []float64 {
	if a.Mode == XAxisTime || !(a.Period > 0) {
		return append([]float64(nil), x...)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		phase := math.Mod((v-a.T0)/a.Period, 1)
		if phase < -0.5 {
			phase++
		} else if phase >= 0.5 {
			phase--
		}
		switch a.Mode {
		case XAxisPhase:
			out[i] = phase
		case XAxisDaysSinceTc:
			out[i] = phase * a.Period
		case XAxisHoursSinceTc:
			out[i] = phase * a.Period * 24
		default:
			panic("lcreduce: unhandled " + a.Mode.String())
		}
	}
	return out
}
