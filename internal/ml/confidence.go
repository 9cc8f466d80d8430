package ml

// ConfidenceScore estimates how much a single scaled inference row can be
// trusted. It averages up to three component signals, each clamped to [0,1]:
//
//  1. the estimator's own fit score against its prediction on the same row
//     (a deliberate self-score proxy, not an out-of-sample estimate),
//  2. 1 − variance of the row's scaled features,
//  3. the maximum class probability when the estimator exposes one.
//
// Components that cannot be computed are skipped rather than fatal; with no
// computable component the score defaults to 0.5.
func ConfidenceScore(est Estimator, row []float64) float64 {
	var components []float64

	if scorer, ok := est.(Scorer); ok {
		input := [][]float64{row}
		if pred, err := est.Predict(input); err == nil {
			if s, err := scorer.Score(input, pred); err == nil {
				components = append(components, clamp01(s))
			}
		}
	}

	if len(row) > 0 {
		components = append(components, clamp01(1-varianceOf(row)))
	}

	if pe, ok := est.(ProbaEstimator); ok {
		if probs, err := pe.PredictProba([][]float64{row}); err == nil && len(probs) > 0 && len(probs[0]) > 0 {
			maxP := probs[0][0]
			for _, p := range probs[0][1:] {
				if p > maxP {
					maxP = p
				}
			}
			components = append(components, clamp01(maxP))
		}
	}

	if len(components) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, c := range components {
		sum += c
	}
	return sum / float64(len(components))
}
