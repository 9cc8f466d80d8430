package lifecycle

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/dataset"
	"github.com/quantora/mlserve/internal/ml"
	"github.com/quantora/mlserve/internal/models"
	"github.com/quantora/mlserve/internal/registry"
)

// Manager handles model persistence, registry-wide retraining and
// quality-ranked eviction.
type Manager struct {
	dir      string
	registry *registry.Registry
	logger   *logrus.Logger
}

// New creates a lifecycle manager writing artifacts under dir.
func New(dir string, reg *registry.Registry, logger *logrus.Logger) *Manager {
	return &Manager{dir: dir, registry: reg, logger: logger}
}

// modelArtifact is the on-disk form of the estimator half of a record.
type modelArtifact struct {
	Estimator      ml.Estimator
	FeatureColumns []string
	TargetColumn   string
	Performance    models.ModelPerformance
}

func (m *Manager) modelPath(name string) string {
	return filepath.Join(m.dir, name+"_model.gob")
}

func (m *Manager) scalerPath(name string) string {
	return filepath.Join(m.dir, name+"_scaler.gob")
}

// Save persists the named model's estimator and scaler artifact pair.
func (m *Manager) Save(name string) error {
	rec, ok := m.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrModelNotFound, name)
	}
	return m.SaveRecord(rec)
}

// SaveRecord writes the artifact pair for a record. Implements
// registry.Saver so freshly trained models persist automatically.
func (m *Manager) SaveRecord(rec *registry.ModelRecord) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}
	if err := writeGob(m.modelPath(rec.Name), &modelArtifact{
		Estimator:      rec.Estimator,
		FeatureColumns: rec.FeatureColumns,
		TargetColumn:   rec.TargetColumn,
		Performance:    rec.Performance,
	}); err != nil {
		return fmt.Errorf("failed to save model artifact: %w", err)
	}
	if err := writeGob(m.scalerPath(rec.Name), rec.Scaler); err != nil {
		return fmt.Errorf("failed to save scaler artifact: %w", err)
	}
	return nil
}

// Load restores a model+scaler pair into the registry. Missing or unreadable
// artifacts are a no-op failure: Load returns false and never crashes.
func (m *Manager) Load(name string) bool {
	var artifact modelArtifact
	if err := readGob(m.modelPath(name), &artifact); err != nil {
		m.logger.WithError(err).WithField("model", name).Debug("Model artifact unavailable")
		return false
	}
	scaler := &ml.StandardScaler{}
	if err := readGob(m.scalerPath(name), scaler); err != nil {
		m.logger.WithError(err).WithField("model", name).Debug("Scaler artifact unavailable")
		return false
	}

	m.registry.Put(&registry.ModelRecord{
		Name:           name,
		Estimator:      artifact.Estimator,
		Scaler:         scaler,
		FeatureColumns: artifact.FeatureColumns,
		TargetColumn:   artifact.TargetColumn,
		Performance:    artifact.Performance,
	})
	m.logger.WithField("model", name).Info("Model loaded from artifacts")
	return true
}

// RetrainAll refits every registry entry against fresh data under a derived
// name and returns the old→new mapping. A failure on one entry is logged
// and skipped, never fatal to the batch.
func (m *Manager) RetrainAll(ctx context.Context, frame *dataset.Frame, target string) map[string]string {
	renamed := make(map[string]string)
	for _, rec := range m.registry.Records() {
		modelType, err := ml.InferType(rec.Estimator)
		if err != nil {
			m.logger.WithError(err).WithField("model", rec.Name).Warn("Cannot infer model family, skipping retrain")
			continue
		}
		newName := fmt.Sprintf("%s_retrained_%d", rec.Name, time.Now().Unix())
		if _, err := m.registry.Train(ctx, modelType, ml.Hyperparams{}, frame, target, newName); err != nil {
			m.logger.WithError(err).WithField("model", rec.Name).Warn("Retrain failed, skipping")
			continue
		}
		renamed[rec.Name] = newName
	}
	m.logger.WithField("retrained", len(renamed)).Info("Registry retrain completed")
	return renamed
}

// Cleanup ranks all entries by R² descending and evicts everything beyond
// keep, artifacts included. Returns the number evicted. Pure
// quality-ranked eviction, not time-based.
func (m *Manager) Cleanup(keep int) int {
	recs := m.registry.Records()
	if len(recs) <= keep {
		return 0
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Performance.R2 > recs[j].Performance.R2
	})

	evicted := 0
	for _, rec := range recs[keep:] {
		if !m.registry.Delete(rec.Name) {
			continue
		}
		for _, path := range []string{m.modelPath(rec.Name), m.scalerPath(rec.Name)} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				m.logger.WithError(err).WithField("model", rec.Name).Debug("Failed to remove artifact")
			}
		}
		m.logger.WithFields(logrus.Fields{
			"model": rec.Name,
			"r2":    rec.Performance.R2,
		}).Info("Model evicted")
		evicted++
	}
	return evicted
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(v)
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}
