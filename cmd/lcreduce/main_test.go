package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/config"
	"lcreduce/pkg/lcreduce"
	"lcreduce/pkg/measurements"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// TestSynthesize produces a noiseless transit with the requested depth.
func TestSynthesize(t *testing.T) {
	p := synthParams{
		model:   lcreduce.ModelParams{F0: 1, P0: 0.1, AR: 10, Tc: 2456500},
		orbit:   lcreduce.Orbit{Period: 3},
		inclDeg: 90,
		start:   math.NaN(),
		end:     math.NaN(),
		samples: 301,
	}
	tbl, err := synthesize(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"JD_UTC", "rel_flux_T1", "rel_flux_err_T1", "AIRMASS"}, tbl.ColumnNames())

	flux, _ := tbl.Column("rel_flux_T1")
	assert.InDelta(t, 1.0, flux[0], 1e-12, "out of transit")
	assert.InDelta(t, 0.99, flux[150], 1e-9, "uniform disk depth is p^2")

	p.samples = 1
	_, err = synthesize(p)
	assert.Error(t, err, "too few samples")
}

// TestModelThenReduce writes a model table and reduces it end to end.
func TestModelThenReduce(t *testing.T) {
	dir := t.TempDir()
	tblPath := filepath.Join(dir, "model.tbl")
	_, err := execute(t, "model", "--out", tblPath, "--noise", "0.0005", "--airmass-slope", "0.01")
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "reduce.yaml")
	cfgYAML := `
log: {level: error, format: json}
markers: {left: 2456499.86, inner_left: 2456499.94, inner_right: 2456500.06, right: 2456500.14}
curves:
  - id: T1
    x: JD_UTC
    y: rel_flux_T1
    detrend: {mode: outside, regressors: [AIRMASS]}
    normalize: {mode: mean, region: outside}
  - id: missing
    y: no_such_column
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	outPath := filepath.Join(dir, "reduced.tbl")
	prefsPath := filepath.Join(dir, "prefs.yaml")
	stdout, err := execute(t, "reduce", "--config", cfgPath, "--table", tblPath, "--out", outPath, "--prefs", prefsPath, "--search")
	require.NoError(t, err)
	assert.Contains(t, stdout, "T1", "summary lists the curve")
	assert.Contains(t, stdout, "disabled", "missing column disables the curve")

	tbl, _, err := measurements.Open(outPath)
	require.NoError(t, err)
	res, ok := tbl.Column("T1_residual")
	require.True(t, ok, "residual column written back")
	assert.Len(t, res, 300)
	_, err = os.Stat(prefsPath)
	assert.NoError(t, err, "prefs saved")
}

// TestReduceRequiresFlags rejects a missing config.
func TestReduceRequiresFlags(t *testing.T) {
	_, err := execute(t, "reduce", "--table", "x.tbl")
	assert.Error(t, err)
}

// TestStar prints spectral type and planet radius.
func TestStar(t *testing.T) {
	out, err := execute(t, "star", "--teff", "5930", "--depth", "0.01")
	require.NoError(t, err)
	assert.Contains(t, out, "G0V")
	assert.Contains(t, out, "1.069 RJ", "0.1 * 10.69 RJ")

	out, err = execute(t, "star", "--list")
	require.NoError(t, err)
	assert.Equal(t, len(lcreduce.MainSequence)+1, strings.Count(out, "\n"), "header plus one row per type")

	_, err = execute(t, "star")
	assert.Error(t, err, "no inputs")
}

// TestApplyHeader fills period and host properties only where the config is silent.
func TestApplyHeader(t *testing.T) {
	cfg, err := config.Parse([]byte(`
curves:
  - id: unset
    y: f
  - id: given
    y: f
    transit: {period: 2.5, host_teff: 5000}
`))
	require.NoError(t, err)
	curves, err := cfg.CurveSettings()
	require.NoError(t, err)

	hdr := measurements.NewHeader()
	hdr.Cards["PERIOD"] = "1.0914"
	hdr.Cards["TEFF"] = "6300"
	hdr.Cards["RADIUS"] = "1.6"
	applyHeader(cfg, curves, hdr)

	assert.Equal(t, 1.0914, curves[0].Transit.Orbit.Period, "header period fills an unset period")
	assert.Equal(t, 6300.0, curves[0].Transit.HostTeff, "header teff fills an unset teff")
	assert.Equal(t, 1.6, curves[0].Transit.HostRadius, "header radius fills an unset radius")
	assert.Equal(t, 2.5, curves[1].Transit.Orbit.Period, "config period wins")
	assert.Equal(t, 5000.0, curves[1].Transit.HostTeff, "config teff wins")

	before := curves[0].Transit
	applyHeader(cfg, curves, nil)
	assert.Equal(t, before, curves[0].Transit, "no header changes nothing")
}
