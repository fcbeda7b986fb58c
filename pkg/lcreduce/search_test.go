package lcreduce_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/lcreduce"
)

// TestOptimizeDetrendSet prefers the smallest subset that explains the trend.
func TestOptimizeDetrendSet(t *testing.T) {
	tbl := trendTable(t)
	cs := lcreduce.NewCurveSettings("c", "rel_flux_T1")
	cs.XColumn = "JD_UTC"
	cs.Detrend = lcreduce.DetrendSettings{Mode: lcreduce.DetrendAll, Regressors: []string{"wobble", "AIRMASS", "wobble"}}

	best, err := lcreduce.OptimizeDetrendSet(context.Background(), tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"AIRMASS"}, best.Regressors)
	assert.InDelta(t, 0.0, best.Chi2Dof, 1e-9)
}

// TestOptimizeDetrendSetRejects modes without coefficients and empty sets.
func TestOptimizeDetrendSetRejects(t *testing.T) {
	tbl := trendTable(t)
	cs := lcreduce.NewCurveSettings("c", "rel_flux_T1")
	_, err := lcreduce.OptimizeDetrendSet(context.Background(), tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions(), 1)
	assert.Error(t, err, "detrending is off")

	cs.Detrend.Mode = lcreduce.DetrendAll
	_, err = lcreduce.OptimizeDetrendSet(context.Background(), tbl, cs, lcreduce.Markers{}, lcreduce.DefaultOptions(), 1)
	assert.Error(t, err, "nothing to search")
}
