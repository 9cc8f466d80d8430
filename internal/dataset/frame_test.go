package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(n int) []time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func TestFrameAddColumn(t *testing.T) {
	f := New(testIndex(3))
	require.NoError(t, f.AddColumn("close", []float64{1, 2, 3}))

	err := f.AddColumn("volume", []float64{1, 2})
	assert.Error(t, err, "length mismatch must be rejected")

	v, ok := f.Column("close")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, v)
	assert.Equal(t, 3, f.Len())
}

func TestFrameColumnOrderStable(t *testing.T) {
	f := New(testIndex(2))
	require.NoError(t, f.AddColumn("b", []float64{1, 2}))
	require.NoError(t, f.AddColumn("a", []float64{3, 4}))
	// Replacing keeps position.
	require.NoError(t, f.AddColumn("b", []float64{5, 6}))

	assert.Equal(t, []string{"b", "a"}, f.Columns())
	v, _ := f.Column("b")
	assert.Equal(t, []float64{5, 6}, v)
}

func TestFrameRowMissingColumnIsNaN(t *testing.T) {
	f := New(testIndex(2))
	require.NoError(t, f.AddColumn("close", []float64{10, 20}))

	row := f.Row(1, []string{"close", "volume"})
	assert.Equal(t, 20.0, row[0])
	assert.True(t, math.IsNaN(row[1]))
}

func TestFromOHLCV(t *testing.T) {
	idx := testIndex(2)
	f, err := FromOHLCV(idx, nil, nil, nil, []float64{1, 2}, []float64{100, 200})
	require.NoError(t, err)
	assert.Equal(t, []string{"close", "volume"}, f.Columns())

	_, err = FromOHLCV(idx, []float64{1}, nil, nil, nil, nil)
	assert.Error(t, err)
}
