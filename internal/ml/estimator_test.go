package ml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantora/mlserve/internal/models"
)

// stepData is a piecewise-constant target the tree ensembles should carve up
// easily: y = 10 when x1 > 5, else 0. x2 is irrelevant.
func stepData() ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		v := float64(i) / 4.0
		x = append(x, []float64{v, float64(i % 3)})
		if v > 5 {
			y = append(y, 10)
		} else {
			y = append(y, 0)
		}
	}
	return x, y
}

func TestParseModelType(t *testing.T) {
	for _, s := range []string{"random_forest", "gradient_boosting", "linear", "ridge", "lasso", "svr", "neural_network"} {
		mt, err := ParseModelType(s)
		require.NoError(t, err)
		assert.Equal(t, ModelType(s), mt)
	}

	_, err := ParseModelType("decision_stump")
	assert.ErrorIs(t, err, models.ErrUnknownModelType)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(ModelType("bogus"), Hyperparams{})
	assert.ErrorIs(t, err, models.ErrUnknownModelType)
}

func TestInferTypeRoundTrip(t *testing.T) {
	for _, mt := range []ModelType{
		TypeRandomForest, TypeGradientBoosting, TypeLinear, TypeRidge,
		TypeLasso, TypeSVR, TypeNeuralNetwork,
	} {
		est, err := New(mt, Hyperparams{})
		require.NoError(t, err)
		got, err := InferType(est)
		require.NoError(t, err)
		assert.Equal(t, mt, got)
	}
}

func TestRandomForestFitsStepFunction(t *testing.T) {
	x, y := stepData()
	m := &RandomForest{NumTrees: 30, MaxDepth: 4, MinLeaf: 2, Seed: 7}
	require.NoError(t, m.Fit(x, y))

	score, err := m.Score(x, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.8)

	imp := m.FeatureImportances()
	require.Len(t, imp, 2)
	sum := imp[0] + imp[1]
	assert.InDelta(t, 1.0, sum, 1e-9, "importances must be normalized")
	assert.Greater(t, imp[0], imp[1], "the split feature must dominate")
}

func TestRandomForestDeterministicWithSeed(t *testing.T) {
	x, y := stepData()
	probe := [][]float64{{2.5, 1}, {7.5, 0}}

	a := &RandomForest{NumTrees: 20, MaxDepth: 4, MinLeaf: 2, Seed: 42}
	b := &RandomForest{NumTrees: 20, MaxDepth: 4, MinLeaf: 2, Seed: 42}
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	pa, err := a.Predict(probe)
	require.NoError(t, err)
	pb, err := b.Predict(probe)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestGradientBoostingFitsStepFunction(t *testing.T) {
	x, y := stepData()
	m := &GradientBoosting{NumTrees: 50, MaxDepth: 3, MinLeaf: 2, LearningRate: 0.1, Seed: 7}
	require.NoError(t, m.Fit(x, y))

	score, err := m.Score(x, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)

	pred, err := m.Predict([][]float64{{9, 0}, {1, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pred[0], 1.0)
	assert.InDelta(t, 0.0, pred[1], 1.0)
}

func TestKernelSVRInterpolates(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {3}, {4}}
	y := []float64{0, 1, 4, 9, 16}

	m := &KernelSVR{Gamma: 0.5, Lambda: 1e-6}
	require.NoError(t, m.Fit(x, y))

	pred, err := m.Predict(x)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], pred[i], 0.1)
	}
}

func TestMLPLearnsLinearMap(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := -10; i <= 10; i++ {
		v := float64(i) / 10
		x = append(x, []float64{v})
		y = append(y, 0.5*v)
	}

	m := &MLPRegressor{Hidden: 8, Epochs: 500, LearningRate: 0.05, Seed: 1}
	require.NoError(t, m.Fit(x, y))

	pred, err := m.Predict([][]float64{{0.4}})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, pred[0], 0.1)
}

// A single SGD step on a one-neuron network, checked against the closed-form
// update. The hidden-layer gradient must use the output weight as it was
// before the output-layer update of the same step.
func TestMLPSingleStepGradients(t *testing.T) {
	m := &MLPRegressor{Hidden: 1, Epochs: 1, LearningRate: 0.1, Seed: 7}
	x := [][]float64{{0.5}}
	y := []float64{1.0}

	// Replay the weight initialization to recover the starting point.
	rng := rand.New(rand.NewSource(7))
	w1 := rng.NormFloat64()
	w2 := rng.NormFloat64()

	require.NoError(t, m.Fit(x, y))

	a := math.Tanh(w1 * 0.5)
	errOut := w2*a - 1.0
	dh := errOut * w2 * (1 - a*a)

	assert.InDelta(t, w2-0.1*errOut*a, m.W2[0], 1e-12)
	assert.InDelta(t, -0.1*errOut, m.B2, 1e-12)
	assert.InDelta(t, w1-0.1*dh*0.5, m.W1[0][0], 1e-12)
	assert.InDelta(t, -0.1*dh, m.B1[0], 1e-12)
}

func TestUnfittedEstimatorsReject(t *testing.T) {
	for _, est := range []Estimator{
		&RandomForest{}, &GradientBoosting{}, &KernelSVR{}, &MLPRegressor{},
	} {
		_, err := est.Predict([][]float64{{1, 2}})
		assert.Error(t, err)
	}
}

func TestFitRejectsDegenerateInput(t *testing.T) {
	m := &RandomForest{NumTrees: 5, MaxDepth: 3, MinLeaf: 1, Seed: 1}
	assert.Error(t, m.Fit(nil, nil))
	assert.Error(t, m.Fit([][]float64{{1}}, []float64{1, 2}))
}

func TestFeatureCountMismatchAtPredict(t *testing.T) {
	x, y := stepData()
	m := &RandomForest{NumTrees: 5, MaxDepth: 3, MinLeaf: 2, Seed: 1}
	require.NoError(t, m.Fit(x, y))

	_, err := m.Predict([][]float64{{1, 2, 3}})
	assert.Error(t, err)
}

func TestConfidenceScoreComponents(t *testing.T) {
	t.Run("default when nothing computable", func(t *testing.T) {
		est := &plainEstimator{}
		assert.Equal(t, 0.5, ConfidenceScore(est, nil))
	})

	t.Run("constant row has full variance component", func(t *testing.T) {
		// A bare estimator has no scorer or proba component, leaving only
		// 1 - variance, which is 1 for a constant row.
		est := &plainEstimator{}
		assert.Equal(t, 1.0, ConfidenceScore(est, []float64{0.3, 0.3, 0.3}))
	})

	t.Run("high variance row drops toward zero", func(t *testing.T) {
		est := &plainEstimator{}
		score := ConfidenceScore(est, []float64{10, -10, 10})
		assert.Equal(t, 0.0, score)
	})

	t.Run("within unit interval", func(t *testing.T) {
		x, y := stepData()
		m := &GradientBoosting{NumTrees: 10, MaxDepth: 3, MinLeaf: 2, LearningRate: 0.1, Seed: 1}
		require.NoError(t, m.Fit(x, y))

		score := ConfidenceScore(m, []float64{2, 1})
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	})

	t.Run("proba component uses max class probability", func(t *testing.T) {
		est := &probaEstimator{probs: []float64{0.2, 0.7, 0.1}}
		// Components: 1 - variance(constant row) = 1 and max proba 0.7.
		score := ConfidenceScore(est, []float64{1, 1})
		assert.InDelta(t, 0.85, score, 1e-9)
	})
}

type plainEstimator struct{}

func (e *plainEstimator) Fit(x [][]float64, y []float64) error     { return nil }
func (e *plainEstimator) Predict(x [][]float64) ([]float64, error) { return make([]float64, len(x)), nil }

type probaEstimator struct {
	plainEstimator
	probs []float64
}

func (e *probaEstimator) PredictProba(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i := range out {
		out[i] = e.probs
	}
	return out, nil
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-3))
	assert.Equal(t, 1.0, clamp01(7))
	assert.Equal(t, 0.25, clamp01(0.25))
	assert.Equal(t, 0.0, clamp01(math.NaN()))
}
