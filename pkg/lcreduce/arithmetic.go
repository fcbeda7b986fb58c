package lcreduce

import "math"

// DivideByZeroSentinel replaces quotients and errors whose divisor is zero.
// It stays finite so axis scans and averages remain comparable.
const DivideByZeroSentinel = 1e100

// Measurement is a value series with optional errors (nil when unavailable).
type Measurement struct {
	Values []float64
	Errors []float64
}

func (m Measurement) err(i int) float64 {
	if m.Errors == nil {
		return 0
	}
	return m.Errors[i]
}

// Combine applies op element-wise between primary and operand.
// When neither side carries errors the result errors are 1 except at sentinels.
// OpCentroidDistance is computed by CentroidDistance instead and is returned unchanged here.
func Combine(op Operator, primary, operand Measurement) Measurement {
	n := len(primary.Values)
	out := Measurement{Values: make([]float64, n), Errors: make([]float64, n)}
	known := primary.Errors != nil || operand.Errors != nil

	for i := 0; i < n; i++ {
		y := primary.Values[i]
		e := primary.err(i)
		if !known {
			e = 1
		}
		switch op {
		case OpNone, OpCentroidDistance:
		case OpCustomError:
			e = operand.Values[i]
		case OpDivide:
			o := operand.Values[i]
			if o == 0 {
				y, e = DivideByZeroSentinel, DivideByZeroSentinel
				break
			}
			if known {
				oe := operand.err(i)
				e = math.Sqrt(e*e/(o*o) + y*y*oe*oe/(o*o*o*o))
			}
			y /= o
		case OpMultiply:
			o := operand.Values[i]
			if known {
				oe := operand.err(i)
				e = math.Sqrt(o*o*e*e + y*y*oe*oe)
			}
			y *= o
		case OpSubtract, OpAdd:
			o := operand.Values[i]
			if known {
				oe := operand.err(i)
				e = math.Sqrt(e*e + oe*oe)
			}
			if op == OpSubtract {
				y -= o
			} else {
				y += o
			}
		default:
			panic("lcreduce: unhandled operator " + op.String())
		}
		out.Values[i] = y
		out.Errors[i] = e
	}
	return out
}

// CentroidDistance returns the scaled Euclidean distance between two positions.
func CentroidDistance(x1, y1, x2, y2 []float64, scale float64) []float64 {
	out := make([]float64, len(x1))
	for i := range out {
		out[i] = scale * math.Hypot(x1[i]-x2[i], y1[i]-y2[i])
	}
	return out
}

// MagnitudeToFlux converts magnitudes to relative flux. Errors follow the
// local derivative of the transform.
func MagnitudeToFlux(m Measurement) Measurement {
	out := Measurement{Values: make([]float64, len(m.Values))}
	if m.Errors != nil {
		out.Errors = make([]float64, len(m.Values))
	}
	for i, v := range m.Values {
		f := math.Pow(10, -v/2.5)
		out.Values[i] = f
		if out.Errors != nil {
			out.Errors[i] = f * math.Ln10 / 2.5 * m.Errors[i]
		}
	}
	return out
}
