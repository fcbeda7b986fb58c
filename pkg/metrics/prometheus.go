// Package metrics exposes reduction passes as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lcreduce/pkg/lcreduce"
)

// Recorder implements lcreduce.Recorder using Prometheus.
type Recorder struct {
	passes       prometheus.Counter
	passDuration prometheus.Histogram
	curvesInPass prometheus.Gauge
	curves       *prometheus.CounterVec
	fitIter      prometheus.Histogram
	fits         *prometheus.CounterVec
}

var _ lcreduce.Recorder = (*Recorder)(nil)

// New registers the recorder's metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		passes: f.NewCounter(prometheus.CounterOpts{
			Name: "lcreduce_passes_total",
			Help: "Completed reduction passes",
		}),
		passDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lcreduce_pass_duration_seconds",
			Help:    "Wall time of one reduction pass",
			Buckets: prometheus.DefBuckets,
		}),
		curvesInPass: f.NewGauge(prometheus.GaugeOpts{
			Name: "lcreduce_pass_curves",
			Help: "Curves in the most recent pass",
		}),
		curves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lcreduce_curves_total",
			Help: "Reduced curves by outcome",
		}, []string{"status"}),
		fitIter: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lcreduce_fit_iterations",
			Help:    "Nelder-Mead iterations per transit fit",
			Buckets: prometheus.ExponentialBuckets(10, 4, 7),
		}),
		fits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lcreduce_fits_total",
			Help: "Transit fits by convergence",
		}, []string{"converged"}),
	}
}

func (r *Recorder) RecordPass(d time.Duration, curves int) {
	r.passes.Inc()
	r.passDuration.Observe(d.Seconds())
	r.curvesInPass.Set(float64(curves))
}

func (r *Recorder) RecordCurve(status lcreduce.CurveStatus) {
	r.curves.WithLabelValues(status.String()).Inc()
}

func (r *Recorder) RecordFit(iterations int, converged bool) {
	r.fitIter.Observe(float64(iterations))
	r.fits.WithLabelValues(strconv.FormatBool(converged)).Inc()
}
