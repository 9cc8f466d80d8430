package registry

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/dataset"
	"github.com/quantora/mlserve/internal/features"
	"github.com/quantora/mlserve/internal/metrics"
	"github.com/quantora/mlserve/internal/ml"
	"github.com/quantora/mlserve/internal/models"
)

// ModelRecord is the registry's stored unit: the fitted estimator, its
// scaler, the exact ordered feature schema recorded at fit time, and the
// rolling performance metrics. Retraining creates a new record; records are
// never mutated in place except for the prediction counter.
type ModelRecord struct {
	Name           string
	Estimator      ml.Estimator
	Scaler         *ml.StandardScaler
	FeatureColumns []string
	TargetColumn   string
	Performance    models.ModelPerformance
}

// Saver persists a freshly trained record. The lifecycle manager implements
// it; training treats persistence as best-effort.
type Saver interface {
	SaveRecord(rec *ModelRecord) error
}

// Registry owns the name→ModelRecord arena and the bounded prediction
// history. Reads are concurrent; mutations take the write lock. Train calls
// are additionally serialized against each other by a dedicated lock.
type Registry struct {
	mu          sync.RWMutex
	records     map[string]*ModelRecord
	history     []*models.PredictionResult
	historySize int

	trainMu  sync.Mutex
	training atomic.Bool

	builder *features.Builder
	saver   Saver
	logger  *logrus.Logger
}

// New creates an empty registry.
func New(builder *features.Builder, logger *logrus.Logger, historySize int) *Registry {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Registry{
		records:     make(map[string]*ModelRecord),
		historySize: historySize,
		builder:     builder,
		logger:      logger,
	}
}

// SetSaver wires the artifact persistence used after training.
func (r *Registry) SetSaver(s Saver) { r.saver = s }

// Training reports whether a train call is currently running.
func (r *Registry) Training() bool { return r.training.Load() }

// Train fits a new model of the given family on the frame and stores it.
// The row range is split chronologically (first 80% train, last 20% test;
// the input is a time series, so never shuffled), the scaler is fitted on
// the train partition only, and the held-out partition yields the stored
// MSE/RMSE/MAE/R². Returns the record name, auto-generated from the model
// type and timestamp when empty.
func (r *Registry) Train(ctx context.Context, modelType ml.ModelType, hp ml.Hyperparams, frame *dataset.Frame, target, name string) (string, error) {
	r.trainMu.Lock()
	defer r.trainMu.Unlock()
	r.training.Store(true)
	defer r.training.Store(false)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()

	x, y, cols, err := r.builder.Build(frame, target, nil)
	if err != nil {
		return "", err
	}
	n := len(x)
	split := int(float64(n) * 0.8)
	if n == 0 || len(cols) == 0 || split == 0 || split == n {
		return "", &models.ModelError{Op: "train", Err: fmt.Errorf("insufficient data: %d rows, %d features", n, len(cols))}
	}

	xTrain, yTrain := x[:split], y[:split]
	xTest, yTest := x[split:], y[split:]

	scaler := &ml.StandardScaler{}
	xTrainScaled, err := scaler.FitTransform(xTrain)
	if err != nil {
		return "", &models.ModelError{Op: "train", Err: err}
	}
	xTestScaled, err := scaler.Transform(xTest)
	if err != nil {
		return "", &models.ModelError{Op: "train", Err: err}
	}

	est, err := ml.New(modelType, hp)
	if err != nil {
		return "", err
	}
	if err := est.Fit(xTrainScaled, yTrain); err != nil {
		return "", &models.ModelError{Op: "fit", Err: err}
	}

	perf, err := evaluate(est, xTestScaled, yTest)
	if err != nil {
		return "", &models.ModelError{Op: "evaluate", Err: err}
	}

	if name == "" {
		name = fmt.Sprintf("%s_%d", modelType, time.Now().Unix())
	}
	rec := &ModelRecord{
		Name:           name,
		Estimator:      est,
		Scaler:         scaler,
		FeatureColumns: cols,
		TargetColumn:   target,
		Performance:    perf,
	}
	r.Put(rec)

	if r.saver != nil {
		if err := r.saver.SaveRecord(rec); err != nil {
			r.logger.WithError(err).WithField("model", name).Warn("Failed to persist model artifacts")
		}
	}

	elapsed := time.Since(start)
	metrics.TrainingDuration.Observe(elapsed.Seconds())

	fields := logrus.Fields{
		"model":    name,
		"type":     modelType,
		"rows":     n,
		"features": len(cols),
		"rmse":     perf.RMSE,
		"r2":       perf.R2,
		"elapsed":  elapsed.String(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields["mem_used_pct"] = vm.UsedPercent
	}
	r.logger.WithFields(fields).Info("Model trained")

	return name, nil
}

func evaluate(est ml.Estimator, x [][]float64, y []float64) (models.ModelPerformance, error) {
	pred, err := est.Predict(x)
	if err != nil {
		return models.ModelPerformance{}, err
	}
	mse, mae := 0.0, 0.0
	for i := range y {
		d := y[i] - pred[i]
		mse += d * d
		mae += math.Abs(d)
	}
	mse /= float64(len(y))
	mae /= float64(len(y))

	r2 := 0.0
	if scorer, ok := est.(ml.Scorer); ok {
		if s, err := scorer.Score(x, y); err == nil {
			r2 = s
		}
	}
	return models.ModelPerformance{
		MSE:         mse,
		RMSE:        math.Sqrt(mse),
		MAE:         mae,
		R2:          r2,
		LastUpdated: time.Now(),
	}, nil
}

// Get returns a record by name.
func (r *Registry) Get(name string) (*ModelRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// Put stores a record, replacing any existing record of the same name.
func (r *Registry) Put(rec *ModelRecord) {
	r.mu.Lock()
	r.records[rec.Name] = rec
	metrics.RegistrySize.Set(float64(len(r.records)))
	r.mu.Unlock()
}

// Delete evicts a record. Returns whether it existed.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[name]; !ok {
		return false
	}
	delete(r.records, name)
	metrics.RegistrySize.Set(float64(len(r.records)))
	return true
}

// Names returns the stored model names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.records))
	for name := range r.records {
		out = append(out, name)
	}
	return out
}

// Records returns a snapshot of all records.
func (r *Registry) Records() []*ModelRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModelRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of stored models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// IncrementPredictionCount bumps the per-model serving counter.
func (r *Registry) IncrementPredictionCount(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[name]; ok {
		rec.Performance.PredictionCount++
		refreshSuccessRate(&rec.Performance)
	}
}

// RecordBlocked bumps the per-model gate-block counter.
func (r *Registry) RecordBlocked(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[name]; ok {
		rec.Performance.BlockedCount++
		refreshSuccessRate(&rec.Performance)
	}
}

func refreshSuccessRate(p *models.ModelPerformance) {
	if total := p.PredictionCount + p.BlockedCount; total > 0 {
		p.SuccessRate = float64(p.PredictionCount) / float64(total)
	}
	p.LastUpdated = time.Now()
}

// AppendHistory records a result in the bounded FIFO prediction history.
func (r *Registry) AppendHistory(res *models.PredictionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, res)
	if len(r.history) > r.historySize {
		r.history = r.history[len(r.history)-r.historySize:]
	}
}

// History returns a copy of the prediction history, oldest first.
func (r *Registry) History() []*models.PredictionResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.PredictionResult, len(r.history))
	copy(out, r.history)
	return out
}
