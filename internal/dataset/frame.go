package dataset

import (
	"fmt"
	"math"
	"time"
)

// Frame is a time-indexed table of float64 columns in insertion order.
// Missing values are represented as NaN. It is the upstream data contract:
// the market-data fetcher produces one and the serving layer consumes it.
type Frame struct {
	index   []time.Time
	order   []string
	columns map[string][]float64
}

// New creates an empty frame over the given time index.
func New(index []time.Time) *Frame {
	return &Frame{
		index:   index,
		columns: make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Index returns the time index.
func (f *Frame) Index() []time.Time { return f.index }

// AddColumn appends a column. Length must match the index; re-adding an
// existing name replaces its values but keeps its position.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), len(f.index))
	}
	if _, ok := f.columns[name]; !ok {
		f.order = append(f.order, name)
	}
	f.columns[name] = values
	return nil
}

// Column returns a column by name.
func (f *Frame) Column(name string) ([]float64, bool) {
	v, ok := f.columns[name]
	return v, ok
}

// HasColumn reports whether the column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Row returns the values of the given columns at row i, in column order.
// Columns absent from the frame yield NaN.
func (f *Frame) Row(i int, cols []string) []float64 {
	row := make([]float64, len(cols))
	for j, c := range cols {
		if v, ok := f.columns[c]; ok && i < len(v) {
			row[j] = v[i]
		} else {
			row[j] = math.NaN()
		}
	}
	return row
}

// FromOHLCV builds a frame from parallel OHLCV slices. Slices may be nil;
// present ones must share the index length.
func FromOHLCV(index []time.Time, open, high, low, close, volume []float64) (*Frame, error) {
	f := New(index)
	add := func(name string, v []float64) error {
		if v == nil {
			return nil
		}
		return f.AddColumn(name, v)
	}
	for _, c := range []struct {
		name   string
		values []float64
	}{
		{"open", open}, {"high", high}, {"low", low}, {"close", close}, {"volume", volume},
	} {
		if err := add(c.name, c.values); err != nil {
			return nil, err
		}
	}
	return f, nil
}
