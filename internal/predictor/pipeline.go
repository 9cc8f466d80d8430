package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/cache"
	"github.com/quantora/mlserve/internal/dataset"
	"github.com/quantora/mlserve/internal/features"
	"github.com/quantora/mlserve/internal/health"
	"github.com/quantora/mlserve/internal/metrics"
	"github.com/quantora/mlserve/internal/ml"
	"github.com/quantora/mlserve/internal/models"
	"github.com/quantora/mlserve/internal/registry"
	"github.com/quantora/mlserve/internal/store"
)

// Options tune the pipeline.
type Options struct {
	// RelevanceThreshold filters feature importances out of the result.
	RelevanceThreshold float64
	// BatchWorkers bounds the batch executor's worker pool.
	BatchWorkers int
}

// Pipeline is the sole entry point for a single inference: feature rebuild,
// scaler transform, health gate, model predict, confidence scoring and
// result assembly.
type Pipeline struct {
	registry *registry.Registry
	builder  *features.Builder
	gate     *health.Gate
	logger   *logrus.Logger

	relevance    float64
	batchWorkers int

	cache *cache.ResultCache
	store *store.PredictionStore
}

// New creates an inference pipeline.
func New(reg *registry.Registry, builder *features.Builder, gate *health.Gate, logger *logrus.Logger, opts Options) *Pipeline {
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = 4
	}
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = 0.01
	}
	return &Pipeline{
		registry:     reg,
		builder:      builder,
		gate:         gate,
		logger:       logger,
		relevance:    opts.RelevanceThreshold,
		batchWorkers: opts.BatchWorkers,
	}
}

// SetCache wires the optional latest-result cache.
func (p *Pipeline) SetCache(c *cache.ResultCache) { p.cache = c }

// SetStore wires the optional prediction persistence.
func (p *Pipeline) SetStore(s *store.PredictionStore) { p.store = s }

// Predict runs one inference for the named model against the frame.
//
// A STOP verdict from the health gate aborts with *models.GateBlockedError
// before the model is ever invoked; no prediction is produced and the
// serving counter is not incremented. A WARNING proceeds but is surfaced in
// the result. confidenceThreshold, when positive, only logs a warning when
// the score falls below it; unlike the gate it never blocks.
func (p *Pipeline) Predict(ctx context.Context, name, symbol string, frame *dataset.Frame, confidenceThreshold float64) (*models.PredictionResult, error) {
	rec, ok := p.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrModelNotFound, name)
	}

	x, _, cols, err := p.builder.Build(frame, rec.TargetColumn, rec.FeatureColumns)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues(name, "error").Inc()
		return nil, err
	}

	scaled, err := rec.Scaler.Transform(x)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues(name, "error").Inc()
		return nil, models.NewDataError("scaling failed: %v", err)
	}
	var scaledLast []float64
	if len(scaled) > 0 {
		scaledLast = scaled[len(scaled)-1]
	}

	report := p.gate.Evaluate(ctx, name, rec.Estimator, x, scaledLast, cols)
	if report.Blocked() {
		metrics.PredictionsTotal.WithLabelValues(name, "blocked").Inc()
		p.registry.RecordBlocked(name)
		return nil, &models.GateBlockedError{ModelName: name, Report: report}
	}
	if report.Status == models.HealthWarning {
		p.logger.WithFields(logrus.Fields{
			"model":   name,
			"symbol":  symbol,
			"reasons": report.Reasons,
		}).Warn("Health gate warning, proceeding with prediction")
	}

	pred, err := rec.Estimator.Predict([][]float64{scaledLast})
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues(name, "error").Inc()
		return nil, &models.ModelError{Op: "predict", Err: err}
	}
	predicted := pred[0]

	score := ml.ConfidenceScore(rec.Estimator, scaledLast)
	level := models.ConfidenceLevelFromScore(score)
	if confidenceThreshold > 0 && score < confidenceThreshold {
		p.logger.WithFields(logrus.Fields{
			"model":     name,
			"symbol":    symbol,
			"score":     score,
			"threshold": confidenceThreshold,
		}).Warn("Confidence score below requested threshold")
	}

	result := &models.PredictionResult{
		Symbol:             symbol,
		PredictedPrice:     predicted,
		Confidence:         level,
		ConfidenceScore:    score,
		ModelName:          name,
		PredictionTime:     time.Now(),
		FeaturesUsed:       cols,
		FeatureImportances: p.relevantImportances(rec.Estimator, cols),
		Interval:           predictionInterval(predicted, rec.Performance.RMSE),
		Health:             report,
	}

	p.registry.AppendHistory(result)
	p.registry.IncrementPredictionCount(name)

	if p.cache != nil {
		p.cache.Set(ctx, result)
	}
	if p.store != nil {
		if err := p.store.Insert(ctx, result); err != nil {
			p.logger.WithError(err).WithField("model", name).Warn("Failed to persist prediction")
		}
	}

	outcome := "ok"
	if report.Status == models.HealthWarning {
		outcome = "warning"
	}
	metrics.PredictionsTotal.WithLabelValues(name, outcome).Inc()

	return result, nil
}

func (p *Pipeline) relevantImportances(est ml.Estimator, cols []string) map[string]float64 {
	imp, ok := est.(ml.Importancer)
	if !ok {
		return nil
	}
	values := imp.FeatureImportances()
	if len(values) != len(cols) {
		return nil
	}
	out := make(map[string]float64)
	for i, v := range values {
		if v >= p.relevance {
			out[cols[i]] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// predictionInterval is a 95%-style band from the stored test RMSE, or a
// flat ±5% when the model has no usable RMSE.
func predictionInterval(predicted, rmse float64) models.PredictionInterval {
	if rmse > 0 {
		return models.PredictionInterval{
			Lower: predicted - 1.96*rmse,
			Upper: predicted + 1.96*rmse,
		}
	}
	return models.PredictionInterval{
		Lower: predicted * 0.95,
		Upper: predicted * 1.05,
	}
}
