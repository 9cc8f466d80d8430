package features

import (
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantora/mlserve/internal/dataset"
	"github.com/quantora/mlserve/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testFrame(t *testing.T, n int, cols map[string][]float64) *dataset.Frame {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = base.Add(time.Duration(i) * time.Hour)
	}
	f := dataset.New(idx)
	for name, v := range cols {
		require.NoError(t, f.AddColumn(name, v))
	}
	return f
}

func closes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestBuildAutoSmallTableSkipsIndicators(t *testing.T) {
	b := NewBuilder(testLogger())
	f := testFrame(t, 10, map[string][]float64{
		"close":  closes(10),
		"volume": closes(10),
	})

	x, y, cols, err := b.Build(f, "close", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"close", "volume"}, cols)
	assert.Len(t, x, 10)
	assert.Len(t, x[0], 2)
	assert.Equal(t, 100.0, y[0])
}

func TestBuildAutoLargeTableAddsIndicators(t *testing.T) {
	b := NewBuilder(testLogger())
	f := testFrame(t, 40, map[string][]float64{"close": closes(40)})

	x, _, cols, err := b.Build(f, "close", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"close", ColMA5, ColMA10, ColMA20, ColRSI14, ColMACD, ColMACDSignal, ColMACDHist,
	}, cols)

	// All values are finite after zero-filling the indicator warm-up rows.
	for _, row := range x {
		for _, v := range row {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}

	// Last ma_5 value is the mean of the last 5 closes.
	last := x[len(x)-1]
	assert.InDelta(t, 137.0, last[1], 1e-9)
}

func TestBuildLargeTableCompletes(t *testing.T) {
	b := NewBuilder(testLogger())
	f := testFrame(t, 200, map[string][]float64{"close": closes(200)})

	// The MACD line and signal channels are produced in lockstep; a stalled
	// drain of either one hangs the whole derivation.
	done := make(chan error, 1)
	go func() {
		_, _, _, err := b.Build(f, "close", nil)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("indicator derivation did not complete")
	}
}

func TestBuildStrictMissingRawColumn(t *testing.T) {
	b := NewBuilder(testLogger())
	f := testFrame(t, 10, map[string][]float64{"close": closes(10)})

	_, _, _, err := b.Build(f, "close", []string{"close", "volume"})
	require.Error(t, err)
	var dataErr *models.DataError
	assert.ErrorAs(t, err, &dataErr)
	assert.Contains(t, err.Error(), "volume")
}

func TestBuildStrictRecomputesDerivedColumns(t *testing.T) {
	b := NewBuilder(testLogger())
	f := testFrame(t, 40, map[string][]float64{"close": closes(40)})

	x, _, cols, err := b.Build(f, "close", []string{"close", ColMA5})
	require.NoError(t, err)
	assert.Equal(t, []string{"close", ColMA5}, cols)
	assert.InDelta(t, 137.0, x[len(x)-1][1], 1e-9)
}

func TestBuildStrictDerivedWithoutTarget(t *testing.T) {
	b := NewBuilder(testLogger())
	f := testFrame(t, 10, map[string][]float64{"volume": closes(10)})

	_, _, _, err := b.Build(f, "close", []string{ColMA5})
	require.Error(t, err)
	var dataErr *models.DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestBuildZeroFillsMissingValues(t *testing.T) {
	b := NewBuilder(testLogger())
	vals := closes(10)
	vals[3] = math.NaN()
	f := testFrame(t, 10, map[string][]float64{"close": vals})

	x, y, _, err := b.Build(f, "close", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, x[3][0])
	assert.Equal(t, 0.0, y[3])
}

func TestBuildTargetAbsentYieldsZeroTarget(t *testing.T) {
	b := NewBuilder(testLogger())
	f := testFrame(t, 5, map[string][]float64{"volume": closes(5)})

	_, y, cols, err := b.Build(f, "close", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"volume"}, cols)
	for _, v := range y {
		assert.Equal(t, 0.0, v)
	}
}
