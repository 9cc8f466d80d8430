package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// TreeNode is a node of a regression tree. Exported fields so fitted trees
// survive gob round trips.
type TreeNode struct {
	Leaf      bool
	Value     float64
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
}

func (t *TreeNode) predictRow(row []float64) float64 {
	node := t
	for !node.Leaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

type treeParams struct {
	maxDepth    int
	minLeaf     int
	featureSub  int // features considered per split; 0 means all
	rng         *rand.Rand
	importances []float64
}

// buildTree grows a CART regression tree by greedy variance reduction.
func buildTree(x [][]float64, y []float64, idx []int, depth int, p treeParams) *TreeNode {
	mean := subsetMean(y, idx)
	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf {
		return &TreeNode{Leaf: true, Value: mean}
	}

	bestFeature, bestThreshold := -1, 0.0
	bestGain := 0.0
	var bestLeft, bestRight []int

	parentVar := subsetVariance(y, idx, mean)
	if parentVar == 0 {
		return &TreeNode{Leaf: true, Value: mean}
	}

	nFeatures := len(x[0])
	candidates := featureCandidates(nFeatures, p.featureSub, p.rng)

	for _, f := range candidates {
		order := make([]int, len(idx))
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		for s := p.minLeaf; s <= len(order)-p.minLeaf; s++ {
			if s > 0 && x[order[s-1]][f] == x[order[s]][f] {
				continue
			}
			left := order[:s]
			right := order[s:]
			lv := subsetVariance(y, left, subsetMean(y, left))
			rv := subsetVariance(y, right, subsetMean(y, right))
			weighted := (float64(len(left))*lv + float64(len(right))*rv) / float64(len(order))
			gain := parentVar - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (x[order[s-1]][f] + x[order[s]][f]) / 2
				bestLeft = append([]int(nil), left...)
				bestRight = append([]int(nil), right...)
			}
		}
	}

	if bestFeature < 0 {
		return &TreeNode{Leaf: true, Value: mean}
	}
	if p.importances != nil {
		p.importances[bestFeature] += bestGain * float64(len(idx))
	}
	return &TreeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      buildTree(x, y, bestLeft, depth+1, p),
		Right:     buildTree(x, y, bestRight, depth+1, p),
	}
}

func featureCandidates(n, sub int, rng *rand.Rand) []int {
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if sub <= 0 || sub >= n || rng == nil {
		return all
	}
	rng.Shuffle(n, func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:sub]
	sort.Ints(picked)
	return picked
}

func subsetMean(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func subsetVariance(y []float64, idx []int, mean float64) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sum += d * d
	}
	return sum / float64(len(idx))
}

// RandomForest is a bagged ensemble of regression trees with per-split
// feature subsampling.
type RandomForest struct {
	NumTrees int
	MaxDepth int
	MinLeaf  int
	Seed     int64

	Trees       []*TreeNode
	Importances []float64
	NumFeatures int
}

func (m *RandomForest) Fit(x [][]float64, y []float64) error {
	if err := checkFitInput(x, y); err != nil {
		return err
	}
	n := len(x)
	p := len(x[0])
	rng := rand.New(rand.NewSource(m.Seed))

	m.NumFeatures = p
	m.Importances = make([]float64, p)
	m.Trees = make([]*TreeNode, 0, m.NumTrees)

	sub := p / 3
	if sub < 1 {
		sub = 1
	}

	for t := 0; t < m.NumTrees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		tree := buildTree(x, y, idx, 0, treeParams{
			maxDepth:    m.MaxDepth,
			minLeaf:     m.MinLeaf,
			featureSub:  sub,
			rng:         rng,
			importances: m.Importances,
		})
		m.Trees = append(m.Trees, tree)
	}
	normalize(m.Importances)
	return nil
}

func (m *RandomForest) Predict(x [][]float64) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, errors.New("model not fitted")
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != m.NumFeatures {
			return nil, errDegenerate
		}
		sum := 0.0
		for _, t := range m.Trees {
			sum += t.predictRow(row)
		}
		out[i] = sum / float64(len(m.Trees))
	}
	return out, nil
}

func (m *RandomForest) Score(x [][]float64, y []float64) (float64, error) {
	return scoreEstimator(m, x, y)
}

func (m *RandomForest) FeatureImportances() []float64 {
	out := make([]float64, len(m.Importances))
	copy(out, m.Importances)
	return out
}

func normalize(vals []float64) {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	if total == 0 || math.IsNaN(total) {
		return
	}
	for i := range vals {
		vals[i] /= total
	}
}
