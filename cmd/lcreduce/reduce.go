package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lcreduce/pkg/config"
	"lcreduce/pkg/lcreduce"
	"lcreduce/pkg/logger"
	"lcreduce/pkg/measurements"
	"lcreduce/pkg/metrics"
	"lcreduce/pkg/render"
)

type reduceFlags struct {
	configPath string
	tablePath  string
	outPath    string
	plotPath   string
	prefsPath  string
	binWidth   float64
	search     bool
	workers    int
	watch      bool
	poll       time.Duration
	debounce   time.Duration
}

func reduceCmd(g *globalFlags) *cobra.Command {
	f := &reduceFlags{}
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Reduce, detrend and fit the curves of a measurement table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReduce(cmd.Context(), g, f, cmd.OutOrStdout())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "Reduction config (YAML)")
	fl.StringVar(&f.tablePath, "table", "", "Measurement table (.tbl/.csv/.txt or .fits)")
	fl.StringVar(&f.outPath, "out", "", "Write the table with reduced columns to this file")
	fl.StringVar(&f.plotPath, "plot", "", "Write a plot (.jpg or .png)")
	fl.StringVar(&f.prefsPath, "prefs", "", "Preference file receiving auto-updated priors")
	fl.Float64Var(&f.binWidth, "bin", 0, "Overlay binned points of this width (days) on the plot")
	fl.BoolVar(&f.search, "search", false, "Pick the detrend regressor subset with the lowest BIC before reducing")
	fl.IntVar(&f.workers, "workers", 4, "Workers for the detrend search")
	fl.BoolVar(&f.watch, "watch", false, "Rerun whenever the table file changes")
	fl.DurationVar(&f.poll, "poll", time.Second, "Table modification poll interval in watch mode")
	fl.DurationVar(&f.debounce, "debounce", 200*time.Millisecond, "Delay before a requested rerun starts")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

// reduction carries the state shared by one-shot and watch runs.
type reduction struct {
	flags *reduceFlags
	log   zerolog.Logger
	sess  *lcreduce.Session
	table *lcreduce.Table
	prefs *config.Prefs
	title string
	out   io.Writer
}

func runReduce(ctx context.Context, g *globalFlags, f *reduceFlags, stdout io.Writer) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	logCfg := cfg.Log
	if g.logLevel != "" {
		logCfg.Level = g.logLevel
	}
	if g.logFormat != "" {
		logCfg.Format = g.logFormat
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}

	tbl, hdr, err := measurements.Open(f.tablePath)
	if err != nil {
		return err
	}
	log.Info().Str("table", f.tablePath).Int("rows", tbl.RowCount()).Int("columns", len(tbl.ColumnNames())).Msg("table loaded")

	curves, err := cfg.CurveSettings()
	if err != nil {
		return err
	}
	applyHeader(cfg, curves, hdr)

	prefs := config.NewPrefs()
	if f.prefsPath != "" {
		if prefs, err = config.LoadPrefs(f.prefsPath); err != nil {
			return err
		}
	}
	for i := range curves {
		if curves[i].Transit.AutoUpdatePriors {
			prefs.ApplyPriors(curves[i].ID, &curves[i].Transit)
		}
	}

	if f.search {
		popts, err := cfg.PipelineOptions()
		if err != nil {
			return err
		}
		if err := searchDetrend(ctx, tbl, curves, cfg.MarkersValue(), popts, f.workers, log); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	stop := serveMetrics(g.metricsAddr, reg, log)
	defer stop()

	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	opts = append(opts, lcreduce.WithLogger(log), lcreduce.WithRecorder(metrics.New(reg)))
	sess, err := lcreduce.NewSession(tbl, curves, opts...)
	if err != nil {
		return err
	}

	r := &reduction{flags: f, log: log, sess: sess, table: tbl, prefs: prefs, out: stdout}
	if hdr != nil {
		r.title = hdr.Title()
	}
	if f.watch {
		return r.watch(ctx)
	}
	pass, err := sess.Run(ctx)
	if err != nil {
		return err
	}
	return r.finish(pass)
}

// applyHeader fills the orbital period and host star properties a FITS header
// carries when the config leaves them unset. curves follow cfg.Curves.
func applyHeader(cfg *config.Config, curves []lcreduce.CurveSettings, hdr *measurements.Header) {
	if hdr == nil {
		return
	}
	teff, hasTeff := hdr.HostTeff()
	radius, hasRadius := hdr.HostRadius()
	period, hasPeriod := hdr.Period()
	for i := range curves {
		ts := &curves[i].Transit
		if hasPeriod && period > 0 && !cfg.Curves[i].Transit.PeriodSet() {
			ts.Orbit.Period = period
		}
		if hasTeff && ts.HostTeff == 0 {
			ts.HostTeff = teff
		}
		if hasRadius && ts.HostRadius == 0 {
			ts.HostRadius = radius
		}
	}
}

// searchDetrend replaces each searchable curve's regressors with the best BIC subset.
func searchDetrend(ctx context.Context, tbl *lcreduce.Table, curves []lcreduce.CurveSettings, markers lcreduce.Markers, opts lcreduce.Options, workers int, log zerolog.Logger) error {
	for i := range curves {
		cs := &curves[i]
		if _, ok := cs.Detrend.Mode.Region(); !ok || len(cs.Detrend.Regressors) == 0 || !cs.Enabled {
			continue
		}
		best, err := lcreduce.OptimizeDetrendSet(ctx, tbl, *cs, markers, opts, workers)
		if err != nil {
			return fmt.Errorf("detrend search for %s: %w", cs.ID, err)
		}
		log.Info().Str("curve", cs.ID).Strs("regressors", best.Regressors).Float64("bic", best.BIC).Msg("detrend set selected")
		cs.Detrend.Regressors = best.Regressors
	}
	return nil
}

// finish prints the pass summary and writes every requested output.
func (r *reduction) finish(pass *lcreduce.PassResult) error {
	printSummary(r.out, pass)

	if r.flags.outPath != "" {
		f, err := os.Create(r.flags.outPath)
		if err != nil {
			return fmt.Errorf("creating output table: %w", err)
		}
		tbl := pass.Table
		if tbl == nil {
			tbl = r.table
		}
		err = measurements.WriteDelimited(f, tbl, nil)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		r.log.Info().Str("path", r.flags.outPath).Msg("table written")
	}

	if r.flags.plotPath != "" {
		opts := render.DefaultOptions()
		opts.Title = r.title
		opts.BinWidth = r.flags.binWidth
		if err := writePlot(pass, opts, r.flags.plotPath); err != nil {
			return err
		}
		r.log.Info().Str("path", r.flags.plotPath).Msg("plot written")
	}

	for _, c := range r.sess.Curves() {
		if c.Settings.Transit.AutoUpdatePriors {
			r.prefs.StorePriors(c.Settings.ID, c.Settings.Transit.Priors)
		}
	}
	return r.prefs.Save()
}

// watch reruns the session whenever the table file's modification time advances.
func (r *reduction) watch(ctx context.Context) error {
	passes, cancel := r.sess.Subscribe(4)
	defer cancel()
	sched := lcreduce.NewScheduler(r.sess, r.flags.debounce, r.log)
	sctx, stop := context.WithCancel(ctx)
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = sched.Serve(sctx)
	}()
	defer func() {
		stop()
		<-served
	}()
	sched.Request()

	ticker := time.NewTicker(r.flags.poll)
	defer ticker.Stop()
	mod := modTime(r.flags.tablePath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case pass := <-passes:
			if err := r.finish(pass); err != nil {
				r.log.Error().Err(err).Msg("writing outputs")
			}
		case <-ticker.C:
			m := modTime(r.flags.tablePath)
			if !m.After(mod) {
				continue
			}
			mod = m
			tbl, _, err := measurements.Open(r.flags.tablePath)
			if err != nil {
				r.log.Warn().Err(err).Msg("table reload failed")
				continue
			}
			if err := r.sess.Rebind(tbl); err != nil {
				return err
			}
			r.table = tbl
			r.log.Info().Int("rows", tbl.RowCount()).Msg("table reloaded")
			sched.Request()
		}
	}
}

func modTime(path string) time.Time {
	st, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return st.ModTime()
}

// printSummary writes one block per curve with its status and statistics.
func printSummary(w io.Writer, pass *lcreduce.PassResult) {
	fmt.Fprintf(w, "=== Pass %d (%.2fs) ===\n", pass.Seq, pass.Duration.Seconds())
	for _, c := range pass.Curves {
		fmt.Fprintf(w, "  %-12s %s", c.ID, c.Status)
		if c.Reason != "" {
			fmt.Fprintf(w, ": %s", c.Reason)
		}
		fmt.Fprintln(w)
		if c.Status != lcreduce.StatusOK {
			continue
		}
		stats := c.Stats.Display()
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %-16s %s\n", k+":", stats[k])
		}
		if f := c.Fit; f != nil {
			for i, name := range lcreduce.TransitParamNames {
				v := f.Params[i]
				if i == lcreduce.ParamInclination {
					v *= 180 / math.Pi
				}
				state := "free"
				if !f.Free[i] {
					state = "locked"
				}
				fmt.Fprintf(w, "    %-16s %.6f (%s)\n", name+":", v, state)
			}
		}
		for _, warn := range c.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", warn)
		}
	}
	fmt.Fprintln(w, "==============================")
}
