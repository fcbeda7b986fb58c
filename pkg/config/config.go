// Package config loads reduction configuration files and converts them to
// lcreduce settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"lcreduce/pkg/lcreduce"
	"lcreduce/pkg/logger"
)

var validate = validator.New()

// Config is the top level reduction file.
type Config struct {
	Log          logger.Config `yaml:"log"`
	Markers      MarkersConfig `yaml:"markers"`
	XAxis        XAxisConfig   `yaml:"x_axis"`
	Detrend      MethodConfig  `yaml:"detrend"`
	ModelSamples int           `yaml:"model_samples" default:"500" validate:"min=2"`
	Curves       []CurveConfig `yaml:"curves" validate:"required,min=1,dive"`
}

type MarkersConfig struct {
	Left         float64 `yaml:"left"`
	InnerLeft    float64 `yaml:"inner_left"`
	InnerRight   float64 `yaml:"inner_right"`
	Right        float64 `yaml:"right"`
	UseLeft      bool    `yaml:"use_left"`
	UseRight     bool    `yaml:"use_right"`
	MeridianFlip float64 `yaml:"meridian_flip"`
}

type XAxisConfig struct {
	Mode   string  `yaml:"mode" default:"time" validate:"oneof=time phase days hours"`
	T0     float64 `yaml:"t0"`
	Period float64 `yaml:"period" validate:"gte=0"`
}

// MethodConfig selects how plain detrend coefficients are solved and removed.
type MethodConfig struct {
	Solver  string `yaml:"solver" default:"regression" validate:"oneof=regression simplex"`
	Combine string `yaml:"combine" default:"subtract" validate:"oneof=subtract divide"`
}

type CurveConfig struct {
	ID            string          `yaml:"id" validate:"required"`
	Enabled       *bool           `yaml:"enabled" default:"true"`
	X             string          `yaml:"x"`
	Y             string          `yaml:"y" validate:"required"`
	Err           string          `yaml:"err"`
	Operator      string          `yaml:"operator" default:"none" validate:"oneof=none divide multiply subtract add centroid-distance custom-error"`
	Operand       string          `yaml:"operand"`
	OperandErr    string          `yaml:"operand_err"`
	Centroid      CentroidConfig  `yaml:"centroid"`
	PixelScale    float64         `yaml:"pixel_scale" validate:"gte=0"`
	FromMagnitude bool            `yaml:"from_magnitude"`
	BinSize       int             `yaml:"bin_size" default:"1" validate:"min=1"`
	ExcludeHead   int             `yaml:"exclude_head" validate:"min=0"`
	ExcludeTail   int             `yaml:"exclude_tail" validate:"min=0"`
	Detrend       DetrendConfig   `yaml:"detrend"`
	Normalize     NormalizeConfig `yaml:"normalize"`
	Transit       TransitConfig   `yaml:"transit"`
}

type CentroidConfig struct {
	X1 string `yaml:"x1"`
	Y1 string `yaml:"y1"`
	X2 string `yaml:"x2"`
	Y2 string `yaml:"y2"`
}

type DetrendConfig struct {
	Mode         string    `yaml:"mode" default:"off" validate:"oneof=off user left right outside inside left-of-inner-right right-of-inner-left all transit"`
	Regressors   []string  `yaml:"regressors"`
	Coefficients []float64 `yaml:"coefficients"`
}

type NormalizeConfig struct {
	Mode            string `yaml:"mode" default:"off" validate:"oneof=off mean weighted"`
	Region          string `yaml:"region" default:"all" validate:"oneof=all left right outside inside left-of-inner-right right-of-inner-left"`
	UseModel        bool   `yaml:"use_model"`
	Magnitude       bool   `yaml:"magnitude"`
	NegateMagnitude bool   `yaml:"negate_magnitude"`
}

type PriorConfig struct {
	Center   *float64 `yaml:"center"`
	Width    *float64 `yaml:"width" validate:"omitempty,gt=0"`
	Step     *float64 `yaml:"step" validate:"omitempty,gt=0"`
	Locked   bool     `yaml:"locked"`
	UseWidth bool     `yaml:"use_width"`
}

type TransitConfig struct {
	Enabled          bool                   `yaml:"enabled"`
	AutoUpdatePriors bool                   `yaml:"auto_update_priors"`
	ImpactLock       bool                   `yaml:"impact_lock"`
	Impact           float64                `yaml:"impact" validate:"gte=0"`
	Period           *float64               `yaml:"period" validate:"omitempty,gt=0"`
	Eccentricity     float64                `yaml:"eccentricity" validate:"gte=0,lt=1"`
	Omega            float64                `yaml:"omega"`
	Tolerance        float64                `yaml:"tolerance" default:"1e-10" validate:"gt=0"`
	MaxIterations    int                    `yaml:"max_iterations" default:"20000" validate:"min=1"`
	HostTeff         float64                `yaml:"host_teff" validate:"gte=0"`
	HostRadius       float64                `yaml:"host_radius" validate:"gte=0"`
	Priors           map[string]PriorConfig `yaml:"priors" validate:"dive"`
	DetrendPriors    []PriorConfig          `yaml:"detrend_priors" validate:"dive"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	for i := range cfg.Curves {
		if err := defaults.Set(&cfg.Curves[i]); err != nil {
			return nil, fmt.Errorf("curve %d defaults: %w", i, err)
		}
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, describe(err)
	}
	return &cfg, nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Namespace()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", e.Namespace(), strings.ReplaceAll(e.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", e.Namespace(), e.Tag(), e.Param()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// MarkersValue converts the marker block.
func (c *Config) MarkersValue() lcreduce.Markers {
	m := c.Markers
	return lcreduce.Markers{
		Left:         m.Left,
		InnerLeft:    m.InnerLeft,
		InnerRight:   m.InnerRight,
		Right:        m.Right,
		UseLeft:      m.UseLeft,
		UseRight:     m.UseRight,
		MeridianFlip: m.MeridianFlip,
	}
}

// PipelineOptions returns the pass-wide pipeline settings.
func (c *Config) PipelineOptions() (lcreduce.Options, error) {
	mode, err := lcreduce.ParseXAxisMode(c.XAxis.Mode)
	if err != nil {
		return lcreduce.Options{}, err
	}
	o := lcreduce.DefaultOptions()
	o.ModelSamples = c.ModelSamples
	o.XAxis = lcreduce.XAxis{Mode: mode, T0: c.XAxis.T0, Period: c.XAxis.Period}
	o.NelderMeadDetrend = c.Detrend.Solver == "simplex"
	o.DivideDetrend = c.Detrend.Combine == "divide"
	return o, nil
}

// SessionOptions returns the session-wide options the file selects.
func (c *Config) SessionOptions() ([]lcreduce.Option, error) {
	o, err := c.PipelineOptions()
	if err != nil {
		return nil, err
	}
	opts := []lcreduce.Option{
		lcreduce.WithMarkers(c.MarkersValue()),
		lcreduce.WithModelSamples(o.ModelSamples),
		lcreduce.WithXAxis(o.XAxis),
	}
	if o.NelderMeadDetrend {
		opts = append(opts, lcreduce.WithNelderMeadDetrend())
	}
	if o.DivideDetrend {
		opts = append(opts, lcreduce.WithDivideDetrend())
	}
	return opts, nil
}

// CurveSettings converts every curve block.
func (c *Config) CurveSettings() ([]lcreduce.CurveSettings, error) {
	out := make([]lcreduce.CurveSettings, 0, len(c.Curves))
	for _, cc := range c.Curves {
		cs, err := cc.Settings()
		if err != nil {
			return nil, fmt.Errorf("curve %q: %w", cc.ID, err)
		}
		out = append(out, cs)
	}
	return out, nil
}

// Settings converts one curve block, starting from lcreduce's defaults.
func (cc CurveConfig) Settings() (lcreduce.CurveSettings, error) {
	cs := lcreduce.NewCurveSettings(cc.ID, cc.Y)
	if cc.Enabled != nil {
		cs.Enabled = *cc.Enabled
	}
	cs.XColumn = cc.X
	cs.ErrColumn = cc.Err
	cs.OperandColumn = cc.Operand
	cs.OperandErrColumn = cc.OperandErr
	cs.Centroid = lcreduce.CentroidColumns{X1: cc.Centroid.X1, Y1: cc.Centroid.Y1, X2: cc.Centroid.X2, Y2: cc.Centroid.Y2}
	cs.PixelScale = cc.PixelScale
	cs.UsePixelScale = cc.PixelScale > 0
	cs.FromMagnitude = cc.FromMagnitude
	cs.BinSize = cc.BinSize
	cs.ExcludeHead = cc.ExcludeHead
	cs.ExcludeTail = cc.ExcludeTail

	var err error
	if cs.Operator, err = lcreduce.ParseOperator(cc.Operator); err != nil {
		return cs, err
	}
	if cs.Detrend.Mode, err = lcreduce.ParseDetrendMode(cc.Detrend.Mode); err != nil {
		return cs, err
	}
	cs.Detrend.Regressors = append([]string(nil), cc.Detrend.Regressors...)
	cs.Detrend.Coefficients = append([]float64(nil), cc.Detrend.Coefficients...)

	if cs.Normalize.Mode, err = lcreduce.ParseNormMode(cc.Normalize.Mode); err != nil {
		return cs, err
	}
	if cs.Normalize.Region, err = lcreduce.ParseRegion(cc.Normalize.Region); err != nil {
		return cs, err
	}
	cs.Normalize.UseModel = cc.Normalize.UseModel
	cs.Normalize.Magnitude = cc.Normalize.Magnitude
	cs.Normalize.NegateMagnitude = cc.Normalize.NegateMagnitude

	t := cc.Transit
	ts := &cs.Transit
	ts.Enabled = t.Enabled
	ts.AutoUpdatePriors = t.AutoUpdatePriors
	ts.ImpactLock = t.ImpactLock
	ts.Impact = t.Impact
	ts.Orbit.Eccentricity = t.Eccentricity
	ts.Orbit.OmegaDeg = t.Omega
	if t.Period != nil {
		ts.Orbit.Period = *t.Period
	}
	ts.Tolerance = t.Tolerance
	ts.MaxIterations = t.MaxIterations
	ts.HostTeff = t.HostTeff
	ts.HostRadius = t.HostRadius
	for name, pc := range t.Priors {
		idx := paramIndex(name)
		if idx < 0 {
			return cs, fmt.Errorf("unknown transit parameter %q", name)
		}
		ts.Priors[idx] = pc.apply(ts.Priors[idx])
	}
	for _, pc := range t.DetrendPriors {
		ts.DetrendPriors = append(ts.DetrendPriors, pc.apply(lcreduce.DefaultPrior))
	}
	return cs, nil
}

// PeriodSet reports whether the file gives an orbital period.
func (t TransitConfig) PeriodSet() bool { return t.Period != nil }

func (pc PriorConfig) apply(p lcreduce.Prior) lcreduce.Prior {
	if pc.Center != nil {
		p.Center = *pc.Center
	}
	if pc.Width != nil {
		p.Width = *pc.Width
	}
	if pc.Step != nil {
		p.Step = *pc.Step
	}
	p.Locked = pc.Locked
	p.UseWidth = pc.UseWidth
	return p
}

func paramIndex(name string) int {
	for i, n := range lcreduce.TransitParamNames {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}
