package lcreduce_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/lcreduce"
)

// TestAggregateBuckets: consecutive rows average into ceil(n/size) samples.
func TestAggregateBuckets(t *testing.T) {
	out := lcreduce.Aggregate([]float64{1, 2, 3, 4, 5}, 0, 0, 2)
	require.Len(t, out, 3, "five rows in buckets of two give three samples")
	assert.Equal(t, []float64{1.5, 3.5, 5}, out, "last bucket holds the leftover row")
}

// TestAggregateHeadTail: excluded rows never contribute.
func TestAggregateHeadTail(t *testing.T) {
	out := lcreduce.Aggregate([]float64{100, 2, 3, 4, 5, 100}, 1, 1, 2)
	assert.Equal(t, []float64{2.5, 4.5}, out)
}

// TestAggregateExcessiveExclusion keeps at least one row.
func TestAggregateExcessiveExclusion(t *testing.T) {
	out := lcreduce.Aggregate([]float64{1, 2, 3}, 5, 5, 1)
	require.Len(t, out, 1, "head and tail covering the table still leave one sample")
	assert.Equal(t, 3.0, out[0])
}

// TestAggregateNaN: NaN rows are skipped and an all-NaN bucket is NaN.
func TestAggregateNaN(t *testing.T) {
	nan := math.NaN()
	out := lcreduce.Aggregate([]float64{1, nan, nan, nan, 3, 4}, 0, 0, 2)
	require.Len(t, out, 3)
	assert.Equal(t, 1.0, out[0], "partial bucket averages its finite rows")
	assert.True(t, math.IsNaN(out[1]), "bucket without finite rows is NaN")
	assert.Equal(t, 3.5, out[2])
}

// TestErrorColumnFor covers the recognised photometry column prefixes.
func TestErrorColumnFor(t *testing.T) {
	cases := map[string]string{
		"rel_flux_T1":    "rel_flux_err_T1",
		"rel_flux_C3":    "rel_flux_err_C3",
		"Source-Sky_T1":  "Source_Error_T1",
		"tot_C_cnts":     "tot_C_err",
		"Source_AMag_T1": "Source_AMag_Err_T1",
	}
	for in, want := range cases {
		got, ok := lcreduce.ErrorColumnFor(in)
		assert.True(t, ok, "prefix of %s is known", in)
		assert.Equal(t, want, got)
	}
	_, ok := lcreduce.ErrorColumnFor("AIRMASS")
	assert.False(t, ok, "plain columns have no error partner")
}

// TestBinByWidth groups samples by time width.
func TestBinByWidth(t *testing.T) {
	x := []float64{0, 0.1, 0.2, 1.0, 1.1, 3.0}
	y := []float64{1, 2, 3, 4, 6, 8}
	e := []float64{3, 4, 0, 1, 1, 2}
	bx, by, be := lcreduce.BinByWidth(x, y, e, 1)
	require.Len(t, bx, 3, "empty bin between 2 and 3 is skipped")
	assert.InDelta(t, 0.1, bx[0], 1e-12)
	assert.Equal(t, []float64{2, 5, 8}, by)
	assert.InDelta(t, 5.0/3, be[0], 1e-12, "quadrature error over count")
	assert.Equal(t, 2.0, be[2])
}

// TestXAxisFolding maps times onto phase and offsets from mid-transit.
func TestXAxisFolding(t *testing.T) {
	x := []float64{100 + 2*3.25, 100 + 2*0.75}
	phase := lcreduce.XAxis{Mode: lcreduce.XAxisPhase, T0: 100, Period: 2}.Apply(x)
	assert.InDelta(t, 0.25, phase[0], 1e-9)
	assert.InDelta(t, -0.25, phase[1], 1e-9, "phase lies in [-0.5, 0.5)")

	hours := lcreduce.XAxis{Mode: lcreduce.XAxisHoursSinceTc, T0: 100, Period: 2}.Apply([]float64{100.5})
	assert.InDelta(t, 12.0, hours[0], 1e-9)

	require.Error(t, lcreduce.XAxis{Mode: lcreduce.XAxisPhase}.Validate(), "phase needs a period")
	require.NoError(t, lcreduce.XAxis{}.Validate())
}
