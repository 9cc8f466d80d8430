package predictor

import (
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/quantora/mlserve/internal/ml"
	"github.com/quantora/mlserve/internal/models"
	"github.com/quantora/mlserve/internal/registry"
)

// Ensemble is a composite estimator predicting the weighted mean of its
// constituents' predictions. Importances across heterogeneous families are
// not meaningfully combinable, so it reports a zero-filled vector.
type Ensemble struct {
	MemberNames []string
	Weights     []float64
	Members     []ml.Estimator
	NumFeatures int
}

func (e *Ensemble) Fit(x [][]float64, y []float64) error {
	for i, m := range e.Members {
		if err := m.Fit(x, y); err != nil {
			return fmt.Errorf("ensemble member %q: %w", e.MemberNames[i], err)
		}
	}
	return nil
}

func (e *Ensemble) Predict(x [][]float64) ([]float64, error) {
	if len(e.Members) == 0 {
		return nil, errors.New("ensemble has no members")
	}
	out := make([]float64, len(x))
	for i, m := range e.Members {
		pred, err := m.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("ensemble member %q: %w", e.MemberNames[i], err)
		}
		for j := range out {
			out[j] += e.Weights[i] * pred[j]
		}
	}
	return out, nil
}

// Score is the mean of the constituents' self-scores.
func (e *Ensemble) Score(x [][]float64, y []float64) (float64, error) {
	sum, n := 0.0, 0
	for _, m := range e.Members {
		scorer, ok := m.(ml.Scorer)
		if !ok {
			continue
		}
		s, err := scorer.Score(x, y)
		if err != nil {
			continue
		}
		sum += s
		n++
	}
	if n == 0 {
		return 0, errors.New("no scorable ensemble members")
	}
	return sum / float64(n), nil
}

func (e *Ensemble) FeatureImportances() []float64 {
	return make([]float64, e.NumFeatures)
}

// CreateEnsemble wraps existing registry models into one logical predictor
// and registers it like any other record. All names must resolve; a missing
// name fails the whole call, never a partial ensemble. Nil weights default
// to uniform, anything else is normalized to sum to 1.
func (p *Pipeline) CreateEnsemble(names []string, weights []float64) (string, error) {
	if len(names) < 2 {
		return "", models.ErrEnsembleTooSmall
	}

	recs := make([]*registry.ModelRecord, len(names))
	for i, name := range names {
		rec, ok := p.registry.Get(name)
		if !ok {
			return "", fmt.Errorf("%w: %q", models.ErrModelNotFound, name)
		}
		recs[i] = rec
	}

	if weights == nil {
		weights = make([]float64, len(names))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(names) {
		return "", models.NewDataError("got %d weights for %d models", len(weights), len(names))
	}
	total := 0.0
	for _, w := range weights {
		if w < 0 {
			return "", models.NewDataError("ensemble weights must be non-negative")
		}
		total += w
	}
	if total == 0 {
		return "", models.NewDataError("ensemble weights sum to zero")
	}
	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / total
	}

	members := make([]ml.Estimator, len(recs))
	var perf models.ModelPerformance
	for i, rec := range recs {
		members[i] = rec.Estimator
		perf.MSE += normalized[i] * rec.Performance.MSE
		perf.RMSE += normalized[i] * rec.Performance.RMSE
		perf.MAE += normalized[i] * rec.Performance.MAE
		perf.R2 += normalized[i] * rec.Performance.R2
	}
	perf.LastUpdated = time.Now()

	name := fmt.Sprintf("ensemble_%d", time.Now().Unix())
	p.registry.Put(&registry.ModelRecord{
		Name: name,
		Estimator: &Ensemble{
			MemberNames: append([]string(nil), names...),
			Weights:     normalized,
			Members:     members,
			NumFeatures: len(recs[0].FeatureColumns),
		},
		Scaler:         recs[0].Scaler,
		FeatureColumns: append([]string(nil), recs[0].FeatureColumns...),
		TargetColumn:   recs[0].TargetColumn,
		Performance:    perf,
	})

	p.logger.WithField("ensemble", name).WithField("members", names).Info("Ensemble created")
	return name, nil
}

func init() {
	gob.Register(&Ensemble{})
}
