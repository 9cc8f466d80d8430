package ml

import (
	"errors"
	"math"
)

// KernelSVR is an RBF-kernel ridge regressor: the kernel analogue of the
// support-vector machine family, fitted in closed form over the training
// points.
type KernelSVR struct {
	Gamma  float64
	Lambda float64

	Support [][]float64
	Dual    []float64
	Bias    float64
}

func (m *KernelSVR) Fit(x [][]float64, y []float64) error {
	if err := checkFitInput(x, y); err != nil {
		return err
	}
	n := len(x)

	m.Bias = meanOf(y)
	centered := make([]float64, n)
	for i := range y {
		centered[i] = y[i] - m.Bias
	}

	k := make([][]float64, n)
	for i := 0; i < n; i++ {
		k[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			v := rbf(x[i], x[j], m.Gamma)
			k[i][j] = v
			k[j][i] = v
		}
		k[i][i] += m.Lambda
	}

	dual, err := solveLinear(k, centered)
	if err != nil {
		return errors.New("svr fit failed: " + err.Error())
	}
	m.Dual = dual
	m.Support = make([][]float64, n)
	for i := range x {
		row := make([]float64, len(x[i]))
		copy(row, x[i])
		m.Support[i] = row
	}
	return nil
}

func (m *KernelSVR) Predict(x [][]float64) ([]float64, error) {
	if m.Dual == nil {
		return nil, errors.New("model not fitted")
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(m.Support[0]) {
			return nil, errDegenerate
		}
		v := m.Bias
		for s, sv := range m.Support {
			v += m.Dual[s] * rbf(row, sv, m.Gamma)
		}
		out[i] = v
	}
	return out, nil
}

func (m *KernelSVR) Score(x [][]float64, y []float64) (float64, error) {
	return scoreEstimator(m, x, y)
}

func rbf(a, b []float64, gamma float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Exp(-gamma * sum)
}
