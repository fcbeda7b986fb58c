package lcreduce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoCurves is returned when a session is created without curves.
var ErrNoCurves = errors.New("lcreduce: no curves")

// ErrUnknownCurve is returned for operations naming a curve the session does not own.
var ErrUnknownCurve = errors.New("lcreduce: unknown curve")

// Recorder receives pass, curve and fit observations.
type Recorder interface {
	RecordPass(d time.Duration, curves int)
	RecordCurve(status CurveStatus)
	RecordFit(iterations int, converged bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordPass(time.Duration, int) {}
func (nopRecorder) RecordCurve(CurveStatus)       {}
func (nopRecorder) RecordFit(int, bool)           {}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Session) { s.log = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(s *Session) { s.rec = r } }

// WithMarkers sets the initial region markers.
func WithMarkers(m Markers) Option { return func(s *Session) { s.markers = m } }

// WithNelderMeadDetrend fits plain detrend coefficients with Nelder-Mead instead of regression.
func WithNelderMeadDetrend() Option { return func(s *Session) { s.opts.NelderMeadDetrend = true } }

// WithDivideDetrend removes trends by division instead of subtraction.
func WithDivideDetrend() Option { return func(s *Session) { s.opts.DivideDetrend = true } }

// WithModelSamples sets how many points sample a fitted model for drawing.
func WithModelSamples(n int) Option { return func(s *Session) { s.opts.ModelSamples = n } }

// WithXAxis folds output times.
func WithXAxis(a XAxis) Option { return func(s *Session) { s.opts.XAxis = a } }

// Session owns a data source, its curves and markers, and runs reduction passes.
type Session struct {
	mu      sync.Mutex
	src     DataSource
	curves  []*Curve
	markers Markers
	opts    Options
	log     zerolog.Logger
	rec     Recorder
	seq     uint64

	subMu  sync.Mutex
	subs   map[int]chan *PassResult
	nextID int
}

// NewSession creates a session over src with one curve per settings record.
func NewSession(src DataSource, curves []CurveSettings, opts ...Option) (*Session, error) {
	if src == nil {
		return nil, errors.New("lcreduce: nil data source")
	}
	if len(curves) == 0 {
		return nil, ErrNoCurves
	}
	s := &Session{
		src:  src,
		opts: DefaultOptions(),
		log:  zerolog.Nop(),
		rec:  nopRecorder{},
		subs: make(map[int]chan *PassResult),
	}
	seen := make(map[string]bool, len(curves))
	for _, cs := range curves {
		if cs.ID == "" {
			return nil, errors.New("lcreduce: curve without id")
		}
		if seen[cs.ID] {
			return nil, fmt.Errorf("lcreduce: duplicate curve %q", cs.ID)
		}
		seen[cs.ID] = true
		s.curves = append(s.curves, &Curve{Settings: cs})
	}
	for _, o := range opts {
		o(s)
	}
	if !s.markers.Ordered() {
		return nil, errors.New("lcreduce: markers out of order")
	}
	if err := s.opts.XAxis.Validate(); err != nil {
		return nil, fmt.Errorf("lcreduce: %w", err)
	}
	return s, nil
}

// Run performs one full pass over every curve and publishes the result.
// Cancellation is observed between curves only.
func (s *Session) Run(ctx context.Context) (*PassResult, error) {
	s.mu.Lock()
	res, err := s.runLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.publish(res)
	return res, nil
}

// runLocked holds the source reservation for the whole pass when the source
// offers one.
func (s *Session) runLocked(ctx context.Context) (*PassResult, error) {
	src := s.src
	if l, ok := src.(sync.Locker); ok {
		l.Lock()
		defer l.Unlock()
	}
	s.seq++
	pass := &PassResult{Seq: s.seq, Started: time.Now(), Markers: s.markers}
	log := s.log.With().Uint64("pass", pass.Seq).Logger()
	log.Debug().Int("curves", len(s.curves)).Msg("pass started")

	for _, c := range s.curves {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("pass cancelled")
			return nil, fmt.Errorf("pass %d: %w", pass.Seq, err)
		}
		r := s.reduce(src, c, log)
		c.Last = &r
		s.rec.RecordCurve(r.Status)
		if r.Fit != nil {
			s.rec.RecordFit(r.Fit.Iterations, r.Fit.Converged)
		}
		pass.Curves = append(pass.Curves, r)
	}
	if t, ok := src.(*Table); ok {
		pass.Table = t.Clone()
	}
	pass.Duration = time.Since(pass.Started)
	s.rec.RecordPass(pass.Duration, len(pass.Curves))
	log.Info().Dur("took", pass.Duration).Int("curves", len(pass.Curves)).Msg("pass finished")
	return pass, nil
}

// reduce runs one curve, converting panics into a failed status.
func (s *Session) reduce(src DataSource, c *Curve, log zerolog.Logger) (r CurveResult) {
	clog := log.With().Str("curve", c.Settings.ID).Logger()
	defer func() {
		if p := recover(); p != nil {
			clog.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("curve failed")
			r = CurveResult{ID: c.Settings.ID, Status: StatusFailed, Reason: fmt.Sprint(p), Reference: 1}
		}
	}()

	r = ReduceCurve(src, c.Settings, s.markers, s.opts)
	for _, w := range r.Warnings {
		clog.Warn().Msg(w)
	}
	switch r.Status {
	case StatusOK:
	case StatusDisabled:
		if c.Settings.Enabled {
			clog.Warn().Str("reason", r.Reason).Msg("curve disabled")
			c.Settings.Enabled = false
		}
		return r
	case StatusFailed:
		return r
	default:
		panic("lcreduce: unhandled " + r.Status.String())
	}

	if f := r.Fit; f != nil {
		ts := &c.Settings.Transit
		if ts.AutoUpdatePriors {
			ts.Priors = f.Priors
			if !math.IsNaN(f.AdjustedInclination) {
				ts.Priors[ParamInclination].Center = f.AdjustedInclination
			}
		}
		ev := clog.Info()
		if !f.Converged {
			ev = clog.Warn()
		}
		ev.Bool("converged", f.Converged).Int("iterations", f.Iterations).
			Float64("chi2dof", f.Chi2Dof).Float64("bic", f.BIC).Msg("transit fit")
	}
	writeBack(src, r, clog)
	return r
}

// writeBack stores derived columns when the source accepts them.
func writeBack(src DataSource, r CurveResult, log zerolog.Logger) {
	w, ok := src.(ColumnWriter)
	if !ok {
		return
	}
	for _, col := range []struct {
		suffix string
		values []float64
	}{
		{"_x", r.X},
		{"_y", r.Y},
		{"_model", r.Model},
		{"_residual", r.Residual},
		{"_residual_err", r.ResidualErr},
	} {
		w.SetColumn(r.ID+col.suffix, col.values)
	}
	log.Debug().Int("rows", len(r.Y)).Msg("columns written")
}

// Subscribe returns a channel receiving every published pass and a cancel
// function that closes it. A subscriber that falls behind by more than
// buffer passes misses the newest ones.
func (s *Session) Subscribe(buffer int) (<-chan *PassResult, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *PassResult, buffer)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(p *PassResult) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- p:
		default:
			s.log.Warn().Int("subscriber", id).Uint64("pass", p.Seq).Msg("subscriber full, pass dropped")
		}
	}
}

// UpdateCurve replaces a curve's settings. The next pass uses them.
func (s *Session) UpdateCurve(cs CurveSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.curves {
		if c.Settings.ID == cs.ID {
			c.Settings = cs
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCurve, cs.ID)
}

// SetMarker moves one marker, pushing its neighbours to keep the order.
func (s *Session) SetMarker(which Marker, x float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers.Set(which, x)
}

// SetMarkers replaces every marker.
func (s *Session) SetMarkers(m Markers) error {
	if !m.Ordered() {
		return errors.New("lcreduce: markers out of order")
	}
	s.mu.Lock()
	s.markers = m
	s.mu.Unlock()
	return nil
}

// Markers returns the current markers.
func (s *Session) Markers() Markers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers
}

// Curves returns a copy of every curve's settings and latest result.
func (s *Session) Curves() []Curve {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Curve, len(s.curves))
	for i, c := range s.curves {
		out[i] = *c
	}
	return out
}

// Rebind swaps the data source, for example after a table reload. Previous
// results stay in place until the next pass.
func (s *Session) Rebind(src DataSource) error {
	if src == nil {
		return errors.New("lcreduce: nil data source")
	}
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
	return nil
}
