package ml

import (
	"errors"
	"math"
)

// StandardScaler standardizes features to zero mean and unit variance,
// column by column. Fit on the training partition only; transform everything
// with the fitted parameters.
type StandardScaler struct {
	Means []float64
	Stds  []float64
}

// Fit learns per-column mean and standard deviation.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 || len(x[0]) == 0 {
		return errors.New("scaler: empty input")
	}
	p := len(x[0])
	s.Means = make([]float64, p)
	s.Stds = make([]float64, p)

	for j := 0; j < p; j++ {
		sum := 0.0
		for i := range x {
			sum += x[i][j]
		}
		mean := sum / float64(len(x))
		ss := 0.0
		for i := range x {
			d := x[i][j] - mean
			ss += d * d
		}
		std := math.Sqrt(ss / float64(len(x)))
		if std == 0 {
			// Constant columns transform to zero instead of exploding.
			std = 1
		}
		s.Means[j] = mean
		s.Stds[j] = std
	}
	return nil
}

// Transform applies the fitted standardization to a new matrix.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Means == nil {
		return nil, errors.New("scaler: not fitted")
	}
	out := make([][]float64, len(x))
	for i := range x {
		if len(x[i]) != len(s.Means) {
			return nil, errors.New("scaler: column count mismatch")
		}
		row := make([]float64, len(x[i]))
		for j := range x[i] {
			row[j] = (x[i][j] - s.Means[j]) / s.Stds[j]
		}
		out[i] = row
	}
	return out, nil
}

// FitTransform fits on x and returns its standardized form.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
