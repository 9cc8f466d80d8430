package ml

import (
	"errors"
	"math"
	"math/rand"
)

// MLPRegressor is a single-hidden-layer feed-forward network trained by
// plain stochastic gradient descent with a tanh activation.
type MLPRegressor struct {
	Hidden       int
	Epochs       int
	LearningRate float64
	Seed         int64

	W1          [][]float64
	B1          []float64
	W2          []float64
	B2          float64
	NumFeatures int
}

func (m *MLPRegressor) Fit(x [][]float64, y []float64) error {
	if err := checkFitInput(x, y); err != nil {
		return err
	}
	n := len(x)
	p := len(x[0])
	rng := rand.New(rand.NewSource(m.Seed))

	m.NumFeatures = p
	m.W1 = make([][]float64, m.Hidden)
	m.B1 = make([]float64, m.Hidden)
	m.W2 = make([]float64, m.Hidden)
	scale := 1 / math.Sqrt(float64(p))
	for h := 0; h < m.Hidden; h++ {
		m.W1[h] = make([]float64, p)
		for j := 0; j < p; j++ {
			m.W1[h][j] = rng.NormFloat64() * scale
		}
		m.W2[h] = rng.NormFloat64() / math.Sqrt(float64(m.Hidden))
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	hidden := make([]float64, m.Hidden)
	w2Prev := make([]float64, m.Hidden)
	for epoch := 0; epoch < m.Epochs; epoch++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, i := range order {
			row := x[i]
			out := m.forward(row, hidden)
			errOut := out - y[i]

			// Output layer. The hidden-layer gradient needs the output
			// weights as they were before this step.
			copy(w2Prev, m.W2)
			for h := 0; h < m.Hidden; h++ {
				grad := errOut * hidden[h]
				m.W2[h] -= m.LearningRate * grad
			}
			m.B2 -= m.LearningRate * errOut

			// Hidden layer; tanh' = 1 - a².
			for h := 0; h < m.Hidden; h++ {
				dh := errOut * w2Prev[h] * (1 - hidden[h]*hidden[h])
				for j := 0; j < p; j++ {
					m.W1[h][j] -= m.LearningRate * dh * row[j]
				}
				m.B1[h] -= m.LearningRate * dh
			}
		}
	}
	return nil
}

func (m *MLPRegressor) forward(row []float64, hidden []float64) float64 {
	for h := 0; h < m.Hidden; h++ {
		sum := m.B1[h]
		for j, v := range row {
			sum += m.W1[h][j] * v
		}
		hidden[h] = math.Tanh(sum)
	}
	out := m.B2
	for h := 0; h < m.Hidden; h++ {
		out += m.W2[h] * hidden[h]
	}
	return out
}

func (m *MLPRegressor) Predict(x [][]float64) ([]float64, error) {
	if m.W1 == nil {
		return nil, errors.New("model not fitted")
	}
	hidden := make([]float64, m.Hidden)
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != m.NumFeatures {
			return nil, errDegenerate
		}
		out[i] = m.forward(row, hidden)
	}
	return out, nil
}

func (m *MLPRegressor) Score(x [][]float64, y []float64) (float64, error) {
	return scoreEstimator(m, x, y)
}
