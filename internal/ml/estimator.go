package ml

import (
	"encoding/gob"
	"fmt"

	"github.com/quantora/mlserve/internal/models"
)

// Estimator is the minimal capability every regression model provides.
type Estimator interface {
	Fit(x [][]float64, y []float64) error
	Predict(x [][]float64) ([]float64, error)
}

// Scorer exposes a goodness-of-fit score (R²) against labelled data.
type Scorer interface {
	Score(x [][]float64, y []float64) (float64, error)
}

// Importancer exposes per-feature importances, aligned with the feature
// column order the model was fitted on.
type Importancer interface {
	FeatureImportances() []float64
}

// ProbaEstimator exposes per-class probabilities. None of the built-in
// regressors implement it; it exists for estimators that do.
type ProbaEstimator interface {
	PredictProba(x [][]float64) ([][]float64, error)
}

// ModelType enumerates the closed set of supported algorithm families.
type ModelType string

const (
	TypeRandomForest     ModelType = "random_forest"
	TypeGradientBoosting ModelType = "gradient_boosting"
	TypeLinear           ModelType = "linear"
	TypeRidge            ModelType = "ridge"
	TypeLasso            ModelType = "lasso"
	TypeSVR              ModelType = "svr"
	TypeNeuralNetwork    ModelType = "neural_network"
)

// ParseModelType validates a string against the supported families.
func ParseModelType(s string) (ModelType, error) {
	t := ModelType(s)
	switch t {
	case TypeRandomForest, TypeGradientBoosting, TypeLinear, TypeRidge,
		TypeLasso, TypeSVR, TypeNeuralNetwork:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", models.ErrUnknownModelType, s)
}

// Hyperparams carries the tunables of every family. Zero values are
// replaced by the family defaults inside New.
type Hyperparams struct {
	NumTrees     int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	Alpha        float64
	Gamma        float64
	HiddenSize   int
	Epochs       int
	Seed         int64
}

// DefaultHyperparams returns the baseline settings shared by Train calls
// that do not override anything.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		NumTrees:     50,
		MaxDepth:     6,
		MinLeaf:      2,
		LearningRate: 0.1,
		Alpha:        1.0,
		Gamma:        0.1,
		HiddenSize:   16,
		Epochs:       200,
		Seed:         42,
	}
}

func (hp Hyperparams) withDefaults() Hyperparams {
	d := DefaultHyperparams()
	if hp.NumTrees <= 0 {
		hp.NumTrees = d.NumTrees
	}
	if hp.MaxDepth <= 0 {
		hp.MaxDepth = d.MaxDepth
	}
	if hp.MinLeaf <= 0 {
		hp.MinLeaf = d.MinLeaf
	}
	if hp.LearningRate <= 0 {
		hp.LearningRate = d.LearningRate
	}
	if hp.Alpha <= 0 {
		hp.Alpha = d.Alpha
	}
	if hp.Gamma <= 0 {
		hp.Gamma = d.Gamma
	}
	if hp.HiddenSize <= 0 {
		hp.HiddenSize = d.HiddenSize
	}
	if hp.Epochs <= 0 {
		hp.Epochs = d.Epochs
	}
	if hp.Seed == 0 {
		hp.Seed = d.Seed
	}
	return hp
}

// New builds an unfitted estimator for the given family. Unknown families
// are a validation error.
func New(t ModelType, hp Hyperparams) (Estimator, error) {
	hp = hp.withDefaults()
	switch t {
	case TypeRandomForest:
		return &RandomForest{NumTrees: hp.NumTrees, MaxDepth: hp.MaxDepth, MinLeaf: hp.MinLeaf, Seed: hp.Seed}, nil
	case TypeGradientBoosting:
		return &GradientBoosting{NumTrees: hp.NumTrees, MaxDepth: 3, MinLeaf: hp.MinLeaf, LearningRate: hp.LearningRate, Seed: hp.Seed}, nil
	case TypeLinear:
		return &LinearRegression{}, nil
	case TypeRidge:
		return &RidgeRegression{Alpha: hp.Alpha}, nil
	case TypeLasso:
		return &LassoRegression{Alpha: hp.Alpha}, nil
	case TypeSVR:
		return &KernelSVR{Gamma: hp.Gamma, Lambda: hp.Alpha}, nil
	case TypeNeuralNetwork:
		return &MLPRegressor{Hidden: hp.HiddenSize, Epochs: hp.Epochs, LearningRate: 0.01, Seed: hp.Seed}, nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownModelType, t)
}

// InferType maps a fitted estimator back to its algorithm family. Used by
// the lifecycle manager when retraining the whole registry.
func InferType(e Estimator) (ModelType, error) {
	switch e.(type) {
	case *RandomForest:
		return TypeRandomForest, nil
	case *GradientBoosting:
		return TypeGradientBoosting, nil
	case *LinearRegression:
		return TypeLinear, nil
	case *RidgeRegression:
		return TypeRidge, nil
	case *LassoRegression:
		return TypeLasso, nil
	case *KernelSVR:
		return TypeSVR, nil
	case *MLPRegressor:
		return TypeNeuralNetwork, nil
	}
	return "", fmt.Errorf("%w: %T", models.ErrUnknownModelType, e)
}

func init() {
	// Estimators travel through gob as Estimator interface values inside
	// lifecycle artifacts.
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
	gob.Register(&LinearRegression{})
	gob.Register(&RidgeRegression{})
	gob.Register(&LassoRegression{})
	gob.Register(&KernelSVR{})
	gob.Register(&MLPRegressor{})
}
