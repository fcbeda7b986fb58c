package lcreduce

import "math"

// Normalized is the output of the normalization stage.
type Normalized struct {
	Y, YErr, Model []float64
	Reference      float64
	Fallback       bool
}

// Normalize divides y, yErr and model by a reference level averaged over a
// region of the data (or of the model when requested). In magnitude mode the
// series become sign*2.5*log10(y/reference) with sign -1 unless negated.
// A zero or empty region reference falls back to the plain mean of all data.
func Normalize(x, y, yErr, model []float64, ns NormalizeSettings, markers Markers) Normalized {
	out := Normalized{Reference: 1}
	if ns.Mode != NormOff {
		src := y
		if ns.UseModel && model != nil {
			src = model
		}
		mask := markers.Mask(ns.Region, x)
		var ref float64
		var n int
		switch ns.Mode {
		case NormMean:
			ref, n = meanMasked(src, mask)
		case NormWeightedMean:
			ref, n = weightedMeanMasked(src, yErr, mask)
		default:
			panic("lcreduce: unhandled " + ns.Mode.String())
		}
		if n == 0 || ref == 0 || math.IsNaN(ref) {
			ref, _ = meanMasked(y, nil)
			out.Fallback = true
		}
		if ref != 0 && !math.IsNaN(ref) {
			out.Reference = ref
		}
	}

	out.Y = out.Apply(y, ns)
	out.Model = out.Apply(model, ns)
	if ns.Magnitude {
		out.YErr = make([]float64, len(yErr))
		for i, e := range yErr {
			out.YErr[i] = 2.5 / math.Ln10 * math.Abs(e/y[i])
		}
	} else {
		out.YErr = out.Apply(yErr, ns)
	}
	return out
}

// Apply maps values onto the normalized scale with the same reference.
func (n Normalized) Apply(values []float64, ns NormalizeSettings) []float64 {
	ref := n.Reference
	if ns.Magnitude {
		sign := -1.0
		if ns.NegateMagnitude {
			sign = 1
		}
		return mapSlice(values, func(v float64) float64 { return sign * 2.5 * math.Log10(v/ref) })
	}
	return mapSlice(values, func(v float64) float64 { return v / ref })
}

func mapSlice(in []float64, f func(float64) float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
