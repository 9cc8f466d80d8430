package ml

import (
	"errors"
	"math/rand"
)

// GradientBoosting fits shallow regression trees to the running residual,
// shrunk by the learning rate.
type GradientBoosting struct {
	NumTrees     int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	Seed         int64

	Init        float64
	Trees       []*TreeNode
	Importances []float64
	NumFeatures int
}

func (m *GradientBoosting) Fit(x [][]float64, y []float64) error {
	if err := checkFitInput(x, y); err != nil {
		return err
	}
	n := len(x)
	p := len(x[0])
	rng := rand.New(rand.NewSource(m.Seed))

	m.NumFeatures = p
	m.Importances = make([]float64, p)
	m.Trees = make([]*TreeNode, 0, m.NumTrees)
	m.Init = meanOf(y)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	resid := make([]float64, n)
	current := make([]float64, n)
	for i := range current {
		current[i] = m.Init
	}

	for t := 0; t < m.NumTrees; t++ {
		for i := range resid {
			resid[i] = y[i] - current[i]
		}
		tree := buildTree(x, resid, idx, 0, treeParams{
			maxDepth:    m.MaxDepth,
			minLeaf:     m.MinLeaf,
			rng:         rng,
			importances: m.Importances,
		})
		m.Trees = append(m.Trees, tree)
		for i, row := range x {
			current[i] += m.LearningRate * tree.predictRow(row)
		}
	}
	normalize(m.Importances)
	return nil
}

func (m *GradientBoosting) Predict(x [][]float64) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, errors.New("model not fitted")
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != m.NumFeatures {
			return nil, errDegenerate
		}
		v := m.Init
		for _, t := range m.Trees {
			v += m.LearningRate * t.predictRow(row)
		}
		out[i] = v
	}
	return out, nil
}

func (m *GradientBoosting) Score(x [][]float64, y []float64) (float64, error) {
	return scoreEstimator(m, x, y)
}

func (m *GradientBoosting) FeatureImportances() []float64 {
	out := make([]float64, len(m.Importances))
	copy(out, m.Importances)
	return out
}
