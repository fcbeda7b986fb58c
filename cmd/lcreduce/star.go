package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"lcreduce/pkg/lcreduce"
)

type starFlags struct {
	teff    float64
	depth   float64
	radius  float64
	density float64
	list    bool
}

func starCmd() *cobra.Command {
	f := &starFlags{}
	cmd := &cobra.Command{
		Use:   "star",
		Short: "Look up main-sequence properties and planet radius from a transit depth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStar(cmd.OutOrStdout(), f)
		},
	}
	fl := cmd.Flags()
	fl.Float64Var(&f.teff, "teff", math.NaN(), "Host effective temperature (K)")
	fl.Float64Var(&f.depth, "depth", math.NaN(), "Transit depth as (Rp/R*)^2")
	fl.Float64Var(&f.radius, "radius", 0, "Host radius (solar radii), overrides the table")
	fl.Float64Var(&f.density, "density", math.NaN(), "Stellar density (g/cm^3)")
	fl.BoolVar(&f.list, "list", false, "Print the main-sequence table")
	return cmd
}

func runStar(w io.Writer, f *starFlags) error {
	if f.list {
		fmt.Fprintf(w, "%-5s %7s %6s %6s %6s %6s %7s\n", "Type", "Teff", "J-K", "R", "M", "rho", "R(RJ)")
		for _, s := range lcreduce.MainSequence {
			fmt.Fprintf(w, "%-5s %7.0f %6.2f %6.2f %6.2f %6.2f %7.2f\n", s.SpType, s.Teff, s.JminusK, s.Radius, s.Mass, s.Density, s.RadiusJ)
		}
		return nil
	}
	if math.IsNaN(f.teff) && math.IsNaN(f.density) {
		return fmt.Errorf("need --teff or --density")
	}

	if !math.IsNaN(f.density) {
		fmt.Fprintf(w, "Spectral type (density): %s\n", lcreduce.SpectralTypeFromDensity(f.density))
	}
	if !math.IsNaN(f.teff) {
		fmt.Fprintf(w, "Spectral type:           %s\n", lcreduce.SpectralTypeFromTeff(f.teff))
		if r, ok := lcreduce.StellarRadiusFromTeff(f.teff); ok {
			fmt.Fprintf(w, "Stellar radius:          %.3f Rsun\n", r)
		}
	}
	if math.IsNaN(f.depth) {
		return nil
	}
	if f.depth <= 0 {
		return fmt.Errorf("depth must be positive")
	}
	p := math.Sqrt(f.depth)
	fmt.Fprintf(w, "Radius ratio:            %.4f\n", p)
	switch {
	case f.radius > 0:
		rj := lcreduce.PlanetRadiusFromStar(f.radius, p)
		fmt.Fprintf(w, "Planet radius:           %.3f RJ (%.2f RE)\n", rj, lcreduce.JupiterToEarth(rj))
	case !math.IsNaN(f.teff):
		fmt.Fprintf(w, "Planet radius:           %s\n", lcreduce.DescribePlanetRadius(f.teff, p))
	}
	return nil
}
