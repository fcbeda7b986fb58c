package lcreduce

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Operator selects the arithmetic applied between a curve's primary series and its operand.
type Operator int

const (
	OpNone Operator = iota
	OpDivide
	OpMultiply
	OpSubtract
	OpAdd
	OpCentroidDistance
	OpCustomError
)

var operatorNames = []string{"none", "divide", "multiply", "subtract", "add", "centroid-distance", "custom-error"}

func (o Operator) String() string { return enumName(operatorNames, int(o), "Operator") }

// ParseOperator maps a configuration string to an Operator.
func ParseOperator(s string) (Operator, error) {
	i, err := parseEnum(operatorNames, s, "operator")
	return Operator(i), err
}

// Region is a sample selection relative to the four boundary markers.
type Region int

const (
	RegionAll Region = iota
	RegionLeftOfInner
	RegionRightOfInner
	RegionOutsideInner
	RegionInsideInner
	RegionLeftOfInnerRight
	RegionRightOfInnerLeft
)

var regionNames = []string{"all", "left", "right", "outside", "inside", "left-of-inner-right", "right-of-inner-left"}

func (r Region) String() string { return enumName(regionNames, int(r), "Region") }

// ParseRegion maps a configuration string to a Region.
func ParseRegion(s string) (Region, error) {
	i, err := parseEnum(regionNames, s, "region")
	return Region(i), err
}

// DetrendMode decides which samples feed detrending and whether a transit is fitted jointly.
type DetrendMode int

const (
	DetrendOff DetrendMode = iota
	DetrendUser
	DetrendLeft
	DetrendRight
	DetrendOutside
	DetrendInside
	DetrendLeftOfInnerRight
	DetrendRightOfInnerLeft
	DetrendAll
	DetrendTransit
)

var detrendModeNames = []string{"off", "user", "left", "right", "outside", "inside",
	"left-of-inner-right", "right-of-inner-left", "all", "transit"}

func (m DetrendMode) String() string { return enumName(detrendModeNames, int(m), "DetrendMode") }

// ParseDetrendMode maps a configuration string to a DetrendMode.
func ParseDetrendMode(s string) (DetrendMode, error) {
	i, err := parseEnum(detrendModeNames, s, "detrend mode")
	return DetrendMode(i), err
}

// Region returns the fit region for modes that fit coefficients.
// Off and user-constant modes report false.
func (m DetrendMode) Region() (Region, bool) {
	switch m {
	case DetrendOff, DetrendUser:
		return RegionAll, false
	case DetrendLeft:
		return RegionLeftOfInner, true
	case DetrendRight:
		return RegionRightOfInner, true
	case DetrendOutside:
		return RegionOutsideInner, true
	case DetrendInside:
		return RegionInsideInner, true
	case DetrendLeftOfInnerRight:
		return RegionLeftOfInnerRight, true
	case DetrendRightOfInnerLeft:
		return RegionRightOfInnerLeft, true
	case DetrendAll, DetrendTransit:
		return RegionAll, true
	default:
		panic(fmt.Sprintf("lcreduce: unhandled %v", m))
	}
}

// NormMode selects how the normalization reference is averaged.
type NormMode int

const (
	NormOff NormMode = iota
	NormMean
	NormWeightedMean
)

var normModeNames = []string{"off", "mean", "weighted"}

func (m NormMode) String() string { return enumName(normModeNames, int(m), "NormMode") }

// ParseNormMode maps a configuration string to a NormMode.
func ParseNormMode(s string) (NormMode, error) {
	i, err := parseEnum(normModeNames, s, "normalization mode")
	return NormMode(i), err
}

func enumName(names []string, i int, kind string) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("%s(%d)", kind, i)
}

func parseEnum(names []string, s, kind string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

// Transit parameter slots, in optimizer order.
const (
	ParamBaseline = iota
	ParamDepth
	ParamAR
	ParamTc
	ParamInclination
	ParamU1
	ParamU2
	NumTransitParams
)

// TransitParamNames label the transit parameter slots.
var TransitParamNames = [NumTransitParams]string{"baseline", "depth", "ar", "tc", "inclination", "u1", "u2"}

// Prior is the lock/prior/step setting of one fitted parameter.
// The depth prior is (Rp/R*)^2 and the inclination prior is in degrees.
type Prior struct {
	Center   float64
	Width    float64
	Step     float64
	Locked   bool
	UseWidth bool
}

// Orbit holds the fixed orbital inputs. They are never fitted.
type Orbit struct {
	Period       float64 // days
	Eccentricity float64
	OmegaDeg     float64 // argument of periastron of the star
}

func (o Orbit) omega() float64 { return o.OmegaDeg * math.Pi / 180 }

// TransitSettings configures the joint transit and detrend fit of one curve.
type TransitSettings struct {
	Enabled          bool
	Priors           [NumTransitParams]Prior
	DetrendPriors    []Prior
	AutoUpdatePriors bool
	ImpactLock       bool
	Impact           float64
	Orbit            Orbit
	Tolerance        float64
	MaxIterations    int
	HostTeff         float64
	HostRadius       float64 // solar radii, zero when unknown
}

// DefaultPrior is used for detrend coefficients without an explicit prior.
var DefaultPrior = Prior{Center: 0, Width: 1, Step: 0.1}

// DefaultTransitSettings returns the starting priors for a fresh curve.
func DefaultTransitSettings() TransitSettings {
	return TransitSettings{
		Priors: [NumTransitParams]Prior{
			ParamBaseline:    {Center: 1.0, Width: 0.005, Step: 0.001},
			ParamDepth:       {Center: 0.010, Width: 0.010, Step: 0.001},
			ParamAR:          {Center: 10, Width: 7, Step: 1},
			ParamTc:          {Center: 2456500, Width: 0.015, Step: 0.001},
			ParamInclination: {Center: 88, Width: 15, Step: 1},
			ParamU1:          {Center: 0.3, Width: 1, Step: 0.1},
			ParamU2:          {Center: 0.3, Width: 1, Step: 0.1},
		},
		Orbit:         Orbit{Period: 3, OmegaDeg: 0},
		Tolerance:     1e-10,
		MaxIterations: 20000,
	}
}

func (t *TransitSettings) detrendPrior(i int) Prior {
	if i < len(t.DetrendPriors) {
		return t.DetrendPriors[i]
	}
	return DefaultPrior
}

// DetrendSettings selects regressors and the fit region for one curve.
// A regressor listed k times contributes powers 1..k.
type DetrendSettings struct {
	Mode         DetrendMode
	Regressors   []string
	Coefficients []float64 // used by DetrendUser
}

// NormalizeSettings configures the normalization stage.
type NormalizeSettings struct {
	Mode            NormMode
	Region          Region
	UseModel        bool
	Magnitude       bool
	NegateMagnitude bool
}

// CentroidColumns name the two positions used by OpCentroidDistance.
type CentroidColumns struct {
	X1, Y1, X2, Y2 string
}

// CurveSettings is the per-curve configuration.
type CurveSettings struct {
	ID               string
	Enabled          bool
	XColumn          string // empty uses the sample number
	YColumn          string
	ErrColumn        string // empty auto-discovers
	Operator         Operator
	OperandColumn    string
	OperandErrColumn string
	Centroid         CentroidColumns
	PixelScale       float64
	UsePixelScale    bool
	FromMagnitude    bool
	BinSize          int
	ExcludeHead      int
	ExcludeTail      int
	Detrend          DetrendSettings
	Transit          TransitSettings
	Normalize        NormalizeSettings
}

// NewCurveSettings returns enabled settings for a curve on column y.
func NewCurveSettings(id, y string) CurveSettings {
	return CurveSettings{
		ID:        id,
		Enabled:   true,
		YColumn:   y,
		BinSize:   1,
		Transit:   DefaultTransitSettings(),
		Detrend:   DetrendSettings{Mode: DetrendOff},
		Normalize: NormalizeSettings{Mode: NormOff, Region: RegionAll},
	}
}

// Curve is one plotted and fitted series owned by a Session.
type Curve struct {
	Settings CurveSettings
	Last     *CurveResult
}

// Series is a curve's aggregated samples. All slices share one index.
// HasErr is false when YErr is the unit default.
type Series struct {
	X, Y, YErr []float64
	HasErr     bool
	Regressors [][]float64
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Y) }

// CurveStatus reports how a curve fared in a pass.
type CurveStatus int

const (
	StatusOK CurveStatus = iota
	StatusDisabled
	StatusFailed
)

func (s CurveStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDisabled:
		return "disabled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("CurveStatus(%d)", int(s))
	}
}

// CurveResult is the immutable output of one curve in one pass.
type CurveResult struct {
	ID     string
	Status CurveStatus
	Reason string

	X, Y, YErr []float64
	// HasErr is false when YErr holds the unit default rather than measured errors.
	HasErr bool
	// ModelX and ModelY sample the fitted model for drawing.
	ModelX, ModelY []float64
	// Model is the fitted model at each X, NaN where undefined.
	Model       []float64
	Residual    []float64
	ResidualErr []float64

	Coefficients []float64
	Dropped      []string
	Fit          *FitResult
	Stats        Statistics
	Reference    float64
	Warnings     []string
}

// PassResult is published once per completed reduction pass.
type PassResult struct {
	Seq      uint64
	Started  time.Time
	Duration time.Duration
	Markers  Markers
	Curves   []CurveResult
	// Table is a copy of the source with this pass's columns written back,
	// nil when the source is not a Table.
	Table *Table
}

// Curve returns the result for id.
func (p *PassResult) Curve(id string) (*CurveResult, bool) {
	for i := range p.Curves {
		if p.Curves[i].ID == id {
			return &p.Curves[i], true
		}
	}
	return nil, false
}
