package features

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/dataset"
	"github.com/quantora/mlserve/internal/models"
)

// Derived feature column names. These are recomputed from the target series
// at inference time when the input table does not carry them.
const (
	ColMA5        = "ma_5"
	ColMA10       = "ma_10"
	ColMA20       = "ma_20"
	ColRSI14      = "rsi_14"
	ColMACD       = "macd"
	ColMACDSignal = "macd_signal"
	ColMACDHist   = "macd_hist"
)

// minRowsForIndicators is the row count above which rolling indicators are
// added to the auto-derived feature set.
const minRowsForIndicators = 20

var companionColumns = []string{"open", "high", "low", "close", "volume"}

// Builder derives the model feature matrix from a raw price table. The same
// derivation runs at training and at inference time so that a model always
// sees the schema it was fitted on.
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a feature builder.
func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build produces (X, y, columns) from a time-ordered frame.
//
// With cols == nil the feature set is auto-derived: the target column and any
// companion OHLCV columns, plus rolling means over {5,10,20}, a 14-period RSI
// and the 12/26/9 MACD triple once the table has more than 20 rows. Missing
// values are zero-filled before conversion.
//
// With explicit cols (re-inference against an existing model) exactly those
// columns are selected in that order. Derived columns absent from the table
// are recomputed from the target series; a missing raw column is a hard
// *models.DataError, never silently zero-filled.
//
// y mirrors the target column and is all-zero when the target is absent
// (pure-inference mode).
func (b *Builder) Build(f *dataset.Frame, target string, cols []string) ([][]float64, []float64, []string, error) {
	n := f.Len()

	var (
		selected []string
		series   = make(map[string][]float64)
	)

	if cols == nil {
		selected = b.autoColumns(f, target, series)
	} else {
		picked, err := b.strictColumns(f, target, cols, series)
		if err != nil {
			return nil, nil, nil, err
		}
		selected = picked
	}

	x := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(selected))
		for j, c := range selected {
			row[j] = zeroFill(series[c][i])
		}
		x[i] = row
	}

	y := make([]float64, n)
	if ts, ok := f.Column(target); ok {
		for i, v := range ts {
			y[i] = zeroFill(v)
		}
	}

	b.logger.WithFields(logrus.Fields{
		"rows":     n,
		"features": len(selected),
		"target":   target,
	}).Debug("Feature matrix built")

	return x, y, selected, nil
}

func (b *Builder) autoColumns(f *dataset.Frame, target string, series map[string][]float64) []string {
	var selected []string
	if ts, ok := f.Column(target); ok {
		selected = append(selected, target)
		series[target] = ts
	}
	for _, c := range companionColumns {
		if c == target {
			continue
		}
		if v, ok := f.Column(c); ok {
			selected = append(selected, c)
			series[c] = v
		}
	}

	ts, ok := f.Column(target)
	if !ok || f.Len() <= minRowsForIndicators {
		return selected
	}

	derived := deriveIndicators(ts)
	for _, c := range derivedOrder {
		selected = append(selected, c)
		series[c] = derived[c]
	}
	return selected
}

func (b *Builder) strictColumns(f *dataset.Frame, target string, cols []string, series map[string][]float64) ([]string, error) {
	var derived map[string][]float64
	for _, c := range cols {
		if v, ok := f.Column(c); ok {
			series[c] = v
			continue
		}
		if !isDerived(c) {
			return nil, models.NewDataError("required feature column %q missing from input data", c)
		}
		if derived == nil {
			ts, ok := f.Column(target)
			if !ok {
				return nil, models.NewDataError("cannot derive %q: target column %q missing from input data", c, target)
			}
			derived = deriveIndicators(ts)
		}
		series[c] = derived[c]
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return out, nil
}

var derivedOrder = []string{ColMA5, ColMA10, ColMA20, ColRSI14, ColMACD, ColMACDSignal, ColMACDHist}

func isDerived(name string) bool {
	for _, c := range derivedOrder {
		if c == name {
			return true
		}
	}
	return false
}

// deriveIndicators computes the rolling indicator columns from the target
// series, front-padded with NaN to the series length.
func deriveIndicators(ts []float64) map[string][]float64 {
	n := len(ts)
	out := make(map[string][]float64, len(derivedOrder))

	for _, w := range []struct {
		name   string
		period int
	}{
		{ColMA5, 5}, {ColMA10, 10}, {ColMA20, 20},
	} {
		sma := trend.NewSmaWithPeriod[float64](w.period)
		vals := helper.ChanToSlice(sma.Compute(helper.SliceToChan(ts)))
		out[w.name] = padLeft(vals, n)
	}

	rsi := momentum.NewRsiWithPeriod[float64](14)
	out[ColRSI14] = padLeft(helper.ChanToSlice(rsi.Compute(helper.SliceToChan(ts))), n)

	macd := trend.NewMacdWithPeriod[float64](12, 26, 9)
	lineChan, signalChan := macd.Compute(helper.SliceToChan(ts))

	// Both MACD outputs come off an unbuffered duplicator, so they have to
	// be drained concurrently; reading one to exhaustion first blocks the
	// producer after its first send on the other.
	signalDone := make(chan []float64, 1)
	go func() { signalDone <- helper.ChanToSlice(signalChan) }()
	line := helper.ChanToSlice(lineChan)
	signal := <-signalDone

	// The signal line lags the MACD line by its own warm-up; align both to
	// the tail before differencing.
	if len(line) > len(signal) {
		line = line[len(line)-len(signal):]
	} else if len(signal) > len(line) {
		signal = signal[len(signal)-len(line):]
	}
	hist := make([]float64, len(line))
	for i := range line {
		hist[i] = line[i] - signal[i]
	}

	out[ColMACD] = padLeft(line, n)
	out[ColMACDSignal] = padLeft(signal, n)
	out[ColMACDHist] = padLeft(hist, n)
	return out
}

func padLeft(vals []float64, n int) []float64 {
	if len(vals) >= n {
		return vals[len(vals)-n:]
	}
	out := make([]float64, n)
	pad := n - len(vals)
	for i := 0; i < pad; i++ {
		out[i] = math.NaN()
	}
	copy(out[pad:], vals)
	return out
}

func zeroFill(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
