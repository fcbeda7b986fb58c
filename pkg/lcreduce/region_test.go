package lcreduce_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lcreduce/pkg/lcreduce"
)

// TestMarkersSetPushesNeighbours keeps the boundaries ordered after any move.
func TestMarkersSetPushesNeighbours(t *testing.T) {
	m := lcreduce.Markers{Left: 0, InnerLeft: 1, InnerRight: 2, Right: 3}

	require.NoError(t, m.Set(lcreduce.MarkerInnerLeft, 5))
	assert.Equal(t, 0.0, m.Left)
	assert.Equal(t, 5.0, m.InnerLeft)
	assert.Equal(t, 5.0, m.InnerRight, "inner right pushed up")
	assert.Equal(t, 5.0, m.Right, "right pushed up")
	assert.True(t, m.Ordered())

	require.NoError(t, m.Set(lcreduce.MarkerInnerRight, -1))
	assert.Equal(t, -1.0, m.Left, "left pushed down")
	assert.Equal(t, -1.0, m.InnerLeft)
	assert.Equal(t, 5.0, m.Right)
	assert.True(t, m.Ordered())

	assert.Error(t, m.Set(lcreduce.Marker(7), 0), "unknown marker")
}

// TestMarkersContains checks strict region membership and the outer switches.
func TestMarkersContains(t *testing.T) {
	m := lcreduce.Markers{Left: 0, InnerLeft: 1, InnerRight: 2, Right: 3}

	assert.True(t, m.Contains(lcreduce.RegionAll, -100), "outer markers unused")
	assert.False(t, m.Contains(lcreduce.RegionInsideInner, 1), "boundaries are excluded")
	assert.True(t, m.Contains(lcreduce.RegionInsideInner, 1.5))
	assert.True(t, m.Contains(lcreduce.RegionOutsideInner, 2.5))
	assert.False(t, m.Contains(lcreduce.RegionOutsideInner, 1.5))
	assert.True(t, m.Contains(lcreduce.RegionLeftOfInnerRight, 1.5))
	assert.False(t, m.Contains(lcreduce.RegionRightOfInnerLeft, 0.5))

	m.UseLeft, m.UseRight = true, true
	assert.False(t, m.Contains(lcreduce.RegionAll, -100), "left marker bounds the region")
	assert.False(t, m.Contains(lcreduce.RegionRightOfInner, 4))
	assert.True(t, m.Contains(lcreduce.RegionLeftOfInner, 0.5))

	mask := m.Mask(lcreduce.RegionInsideInner, []float64{0.5, 1.5, math.NaN()})
	assert.Equal(t, []bool{false, true, false}, mask)
}
