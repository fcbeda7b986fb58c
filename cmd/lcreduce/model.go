package main

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"lcreduce/pkg/lcreduce"
	"lcreduce/pkg/measurements"
)

// synthParams describe a synthetic transit observation.
type synthParams struct {
	model        lcreduce.ModelParams
	orbit        lcreduce.Orbit
	inclDeg      float64
	start, end   float64
	samples      int
	noise        float64
	airmassSlope float64
	seed         uint64
}

func modelCmd() *cobra.Command {
	p := synthParams{}
	var out string
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Write a synthetic transit light curve table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl, err := synthesize(p)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating model table: %w", err)
				}
				defer f.Close()
				w = f
			}
			return measurements.WriteDelimited(w, tbl, nil)
		},
	}
	fl := cmd.Flags()
	fl.Float64Var(&p.model.Tc, "tc", 2456500, "Mid-transit time (BJD)")
	fl.Float64Var(&p.orbit.Period, "period", 3, "Orbital period (days)")
	fl.Float64Var(&p.model.AR, "ar", 10, "Semi-major axis in stellar radii")
	fl.Float64Var(&p.inclDeg, "incl", 89, "Inclination (degrees)")
	fl.Float64Var(&p.model.P0, "rp", 0.1, "Planet to star radius ratio")
	fl.Float64Var(&p.model.U1, "u1", 0.3, "Linear limb darkening coefficient")
	fl.Float64Var(&p.model.U2, "u2", 0.2, "Quadratic limb darkening coefficient")
	fl.Float64Var(&p.model.F0, "baseline", 1, "Out-of-transit flux")
	fl.Float64Var(&p.orbit.Eccentricity, "ecc", 0, "Eccentricity")
	fl.Float64Var(&p.orbit.OmegaDeg, "omega", 0, "Argument of periastron (degrees)")
	fl.Float64Var(&p.start, "start", math.NaN(), "First sample time (default tc-0.15)")
	fl.Float64Var(&p.end, "end", math.NaN(), "Last sample time (default tc+0.15)")
	fl.IntVar(&p.samples, "n", 300, "Number of samples")
	fl.Float64Var(&p.noise, "noise", 0.001, "Gaussian flux noise sigma")
	fl.Float64Var(&p.airmassSlope, "airmass-slope", 0, "Flux change per unit airmass")
	fl.Uint64Var(&p.seed, "seed", 1, "Noise seed")
	fl.StringVar(&out, "out", "", "Output file (default stdout)")
	return cmd
}

// synthesize evaluates the transit model on an even time grid, adds an
// airmass trend and Gaussian noise, and returns the table.
func synthesize(p synthParams) (*lcreduce.Table, error) {
	if p.samples < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", p.samples)
	}
	if !(p.orbit.Period > 0) {
		return nil, fmt.Errorf("period must be positive")
	}
	if math.IsNaN(p.start) {
		p.start = p.model.Tc - 0.15
	}
	if math.IsNaN(p.end) {
		p.end = p.model.Tc + 0.15
	}
	if p.end <= p.start {
		return nil, fmt.Errorf("end %.6f must follow start %.6f", p.end, p.start)
	}
	p.model.Inclination = p.inclDeg * math.Pi / 180

	t := make([]float64, p.samples)
	step := (p.end - p.start) / float64(p.samples-1)
	for i := range t {
		t[i] = p.start + float64(i)*step
	}
	flux := lcreduce.TransitModel(t, p.model, p.orbit)

	rng := rand.New(rand.NewPCG(p.seed, p.seed^0x9e3779b97f4a7c15))
	airmass := make([]float64, p.samples)
	errs := make([]float64, p.samples)
	mid := (p.start + p.end) / 2
	for i := range flux {
		// airmass rises away from the middle of the night
		airmass[i] = 1.1 + 8*(t[i]-mid)*(t[i]-mid)
		flux[i] += p.airmassSlope * (airmass[i] - 1.1)
		flux[i] += p.noise * rng.NormFloat64()
		errs[i] = p.noise
	}

	tbl := lcreduce.NewTable()
	for _, col := range []struct {
		name   string
		values []float64
	}{
		{"JD_UTC", t},
		{"rel_flux_T1", flux},
		{"rel_flux_err_T1", errs},
		{"AIRMASS", airmass},
	} {
		if err := tbl.AddColumn(col.name, col.values); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
