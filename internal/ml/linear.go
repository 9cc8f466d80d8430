package ml

import (
	"errors"
	"math"
)

// LinearRegression is ordinary least squares solved via the normal
// equations.
type LinearRegression struct {
	Coef      []float64
	Intercept float64
}

func (m *LinearRegression) Fit(x [][]float64, y []float64) error {
	coef, err := solveNormalEquations(x, y, 0)
	if err != nil {
		return err
	}
	m.Intercept = coef[0]
	m.Coef = coef[1:]
	return nil
}

func (m *LinearRegression) Predict(x [][]float64) ([]float64, error) {
	return linearPredict(m.Coef, m.Intercept, x)
}

func (m *LinearRegression) Score(x [][]float64, y []float64) (float64, error) {
	return scoreEstimator(m, x, y)
}

// RidgeRegression is least squares with an L2 penalty on the coefficients
// (the intercept is not penalized).
type RidgeRegression struct {
	Alpha     float64
	Coef      []float64
	Intercept float64
}

func (m *RidgeRegression) Fit(x [][]float64, y []float64) error {
	coef, err := solveNormalEquations(x, y, m.Alpha)
	if err != nil {
		return err
	}
	m.Intercept = coef[0]
	m.Coef = coef[1:]
	return nil
}

func (m *RidgeRegression) Predict(x [][]float64) ([]float64, error) {
	return linearPredict(m.Coef, m.Intercept, x)
}

func (m *RidgeRegression) Score(x [][]float64, y []float64) (float64, error) {
	return scoreEstimator(m, x, y)
}

// LassoRegression is least squares with an L1 penalty, fitted by cyclic
// coordinate descent.
type LassoRegression struct {
	Alpha     float64
	MaxIter   int
	Tol       float64
	Coef      []float64
	Intercept float64
}

func (m *LassoRegression) Fit(x [][]float64, y []float64) error {
	if err := checkFitInput(x, y); err != nil {
		return err
	}
	n := len(x)
	p := len(x[0])
	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 500
	}
	tol := m.Tol
	if tol <= 0 {
		tol = 1e-6
	}

	// Center y; coordinate descent runs on the raw feature columns.
	yMean := meanOf(y)
	coef := make([]float64, p)
	colNorm := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			colNorm[j] += x[i][j] * x[i][j]
		}
	}

	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y[i] - yMean
	}

	for iter := 0; iter < maxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if colNorm[j] == 0 {
				continue
			}
			// Partial residual correlation with column j.
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += x[i][j] * (resid[i] + coef[j]*x[i][j])
			}
			updated := softThreshold(rho, m.Alpha*float64(n)/2) / colNorm[j]
			delta := updated - coef[j]
			if delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= delta * x[i][j]
				}
				coef[j] = updated
			}
			if d := math.Abs(delta); d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta < tol {
			break
		}
	}

	m.Coef = coef
	m.Intercept = yMean
	// Fold the feature means back into the intercept.
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = x[i][j]
		}
		m.Intercept -= coef[j] * meanOf(col)
	}
	return nil
}

func (m *LassoRegression) Predict(x [][]float64) ([]float64, error) {
	return linearPredict(m.Coef, m.Intercept, x)
}

func (m *LassoRegression) Score(x [][]float64, y []float64) (float64, error) {
	return scoreEstimator(m, x, y)
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// solveNormalEquations returns [intercept, coef...] for (XᵀX + αI)β = Xᵀy
// with a bias column prepended. α is not applied to the bias term.
func solveNormalEquations(x [][]float64, y []float64, alpha float64) ([]float64, error) {
	if err := checkFitInput(x, y); err != nil {
		return nil, err
	}
	n := len(x)
	p := len(x[0]) + 1

	xtx := make([][]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	xty := make([]float64, p)

	at := func(i, j int) float64 {
		if j == 0 {
			return 1
		}
		return x[i][j-1]
	}
	for i := 0; i < n; i++ {
		for a := 0; a < p; a++ {
			va := at(i, a)
			xty[a] += va * y[i]
			for b := a; b < p; b++ {
				xtx[a][b] += va * at(i, b)
			}
		}
	}
	for a := 0; a < p; a++ {
		for b := 0; b < a; b++ {
			xtx[a][b] = xtx[b][a]
		}
	}
	// Derived indicator columns can be exactly collinear (the MACD histogram
	// is line minus signal), which makes XᵀX singular. A tiny jitter keeps
	// the unpenalized solve well posed without measurably moving the fit.
	if alpha == 0 {
		alpha = 1e-8
	}
	for a := 1; a < p; a++ {
		xtx[a][a] += alpha
	}

	coef, err := solveLinear(xtx, xty)
	if err != nil {
		return nil, errors.New("linear fit failed: " + err.Error())
	}
	return coef, nil
}

func linearPredict(coef []float64, intercept float64, x [][]float64) ([]float64, error) {
	if coef == nil {
		return nil, errors.New("model not fitted")
	}
	out := make([]float64, len(x))
	for i := range x {
		if len(x[i]) != len(coef) {
			return nil, errDegenerate
		}
		v := intercept
		for j := range coef {
			v += coef[j] * x[i][j]
		}
		out[i] = v
	}
	return out, nil
}

func scoreEstimator(e Estimator, x [][]float64, y []float64) (float64, error) {
	pred, err := e.Predict(x)
	if err != nil {
		return 0, err
	}
	return r2Score(y, pred)
}
