package ml

import (
	"errors"
	"math"
)

var errDegenerate = errors.New("degenerate input")

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// varianceOf is the population variance.
func varianceOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := meanOf(xs)
	sum := 0.0
	for _, v := range xs {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// r2Score returns the coefficient of determination. Constant targets make
// the score undefined and return an error so callers can skip the metric.
func r2Score(yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0, errDegenerate
	}
	m := meanOf(yTrue)
	ssRes, ssTot := 0.0, 0.0
	for i := range yTrue {
		r := yTrue[i] - yPred[i]
		ssRes += r * r
		t := yTrue[i] - m
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0, errDegenerate
	}
	return 1 - ssRes/ssTot, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// solveLinear solves a*x = b in place via Gaussian elimination with partial
// pivoting. a is square; both arguments are clobbered.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil, errDegenerate
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular matrix")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}

func checkFitInput(x [][]float64, y []float64) error {
	if len(x) == 0 || len(y) != len(x) || len(x[0]) == 0 {
		return errDegenerate
	}
	return nil
}
