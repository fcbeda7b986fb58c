package lcreduce

import (
	"fmt"
	"math"
)

// Marker names one of the four region boundaries.
type Marker int

const (
	MarkerLeft Marker = iota
	MarkerInnerLeft
	MarkerInnerRight
	MarkerRight
)

// Markers are the boundaries that define fit and normalization regions.
// Left and Right only bound a region when UseLeft and UseRight are set.
type Markers struct {
	Left         float64
	InnerLeft    float64
	InnerRight   float64
	Right        float64
	UseLeft      bool
	UseRight     bool
	MeridianFlip float64
}

func (m *Markers) values() [4]float64 {
	return [4]float64{m.Left, m.InnerLeft, m.InnerRight, m.Right}
}

func (m *Markers) setValues(v [4]float64) {
	m.Left, m.InnerLeft, m.InnerRight, m.Right = v[0], v[1], v[2], v[3]
}

// Set moves one boundary and pushes its neighbours so that
// Left <= InnerLeft <= InnerRight <= Right still holds.
func (m *Markers) Set(which Marker, x float64) error {
	if which < MarkerLeft || which > MarkerRight {
		return fmt.Errorf("unknown marker %d", which)
	}
	v := m.values()
	v[which] = x
	for i := int(which) + 1; i < len(v); i++ {
		if v[i] < v[i-1] {
			v[i] = v[i-1]
		}
	}
	for i := int(which) - 1; i >= 0; i-- {
		if v[i] > v[i+1] {
			v[i] = v[i+1]
		}
	}
	m.setValues(v)
	return nil
}

// Ordered reports whether the boundaries are non-decreasing.
func (m Markers) Ordered() bool {
	return m.Left <= m.InnerLeft && m.InnerLeft <= m.InnerRight && m.InnerRight <= m.Right
}

// Bounds returns the effective outer limits and the inner boundaries.
func (m Markers) Bounds() (lo, left, right, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if m.UseLeft {
		lo = m.Left
	}
	if m.UseRight {
		hi = m.Right
	}
	return lo, m.InnerLeft, m.InnerRight, hi
}

// Contains reports whether x lies strictly inside region r.
func (m Markers) Contains(r Region, x float64) bool {
	lo, left, right, hi := m.Bounds()
	switch r {
	case RegionAll:
		return x > lo && x < hi
	case RegionLeftOfInner:
		return x > lo && x < left
	case RegionRightOfInner:
		return x > right && x < hi
	case RegionOutsideInner:
		return (x > lo && x < left) || (x > right && x < hi)
	case RegionInsideInner:
		return x > left && x < right
	case RegionLeftOfInnerRight:
		return x > lo && x < right
	case RegionRightOfInnerLeft:
		return x > left && x < hi
	default:
		panic(fmt.Sprintf("lcreduce: unhandled %v", r))
	}
}

// Mask evaluates Contains over xs.
func (m Markers) Mask(r Region, xs []float64) []bool {
	out := make([]bool, len(xs))
	for i, x := range xs {
		out[i] = m.Contains(r, x)
	}
	return out
}
