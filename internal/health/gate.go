package health

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/metrics"
	"github.com/quantora/mlserve/internal/ml"
	"github.com/quantora/mlserve/internal/models"
	"github.com/quantora/mlserve/internal/notify"
)

// Thresholds are the gate's decision boundaries.
type Thresholds struct {
	MissingRatioLimit float64
	ZScoreLimit       float64
	MahalanobisStop   float64
	MahalanobisWarn   float64
	ConfidenceFloor   float64
}

// DefaultThresholds returns the production gate boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MissingRatioLimit: 0.10,
		ZScoreLimit:       5.0,
		MahalanobisStop:   25.0,
		MahalanobisWarn:   16.0,
		ConfidenceFloor:   0.6,
	}
}

// Gate evaluates a candidate input against the training-time
// characteristics of a model and emits an OK/WARNING/STOP verdict. Any
// internal failure is fail-safe: the gate escalates to STOP, never
// fail-open.
type Gate struct {
	thresholds Thresholds
	exporter   *ReportExporter
	notifier   notify.Notifier
	logger     *logrus.Logger

	mu   sync.RWMutex
	last *models.HealthReport
}

// NewGate creates a health gate. exporter and notifier may be nil.
func NewGate(th Thresholds, exporter *ReportExporter, notifier notify.Notifier, logger *logrus.Logger) *Gate {
	return &Gate{
		thresholds: th,
		exporter:   exporter,
		notifier:   notifier,
		logger:     logger,
	}
}

// Evaluate runs the gate checks for one inference. The missing-data ratio is
// computed over the entire raw feature matrix; the z-score and Mahalanobis
// checks look only at the last scaled row.
//
// The returned report is also exported to the side-channel artifact, and
// WARNING/STOP verdicts are dispatched to the notification sink; both are
// best-effort and never change the verdict.
func (g *Gate) Evaluate(ctx context.Context, modelName string, est ml.Estimator, xRaw [][]float64, scaledLast []float64, cols []string) *models.HealthReport {
	report := g.safeEvaluate(est, xRaw, scaledLast, cols)

	metrics.GateVerdicts.WithLabelValues(string(report.Status)).Inc()

	g.mu.Lock()
	g.last = report
	g.mu.Unlock()

	if g.exporter != nil {
		if err := g.exporter.Export(report); err != nil {
			g.logger.WithError(err).Debug("Health report export failed")
		}
	}
	if g.notifier != nil && report.Status != models.HealthOK {
		g.notifier.NotifyHealth(ctx, modelName, report)
	}
	return report
}

// LastReport returns the most recent evaluation, or nil before the first
// inference.
func (g *Gate) LastReport() *models.HealthReport {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}

func (g *Gate) safeEvaluate(est ml.Estimator, xRaw [][]float64, scaledLast []float64, cols []string) (report *models.HealthReport) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithField("panic", r).Error("Health gate evaluation panicked")
			report = &models.HealthReport{
				Status:    models.HealthStop,
				Detail:    map[string]float64{},
				Reasons:   []string{"health evaluation error"},
				CheckedAt: time.Now(),
			}
		}
	}()
	return g.evaluate(est, xRaw, scaledLast, cols)
}

func (g *Gate) evaluate(est ml.Estimator, xRaw [][]float64, scaledLast []float64, cols []string) *models.HealthReport {
	detail := make(map[string]float64)
	var stopReasons, warnReasons []string

	total := 0
	for _, row := range xRaw {
		total += len(row)
	}
	if len(cols) == 0 || total == 0 {
		detail["missing_ratio"] = 1.0
		return &models.HealthReport{
			Status:    models.HealthStop,
			Detail:    detail,
			Reasons:   []string{"empty feature set"},
			CheckedAt: time.Now(),
		}
	}

	missing := 0
	for _, row := range xRaw {
		for _, v := range row {
			if math.IsNaN(v) {
				missing++
			}
		}
	}
	missingRatio := float64(missing) / float64(total)
	detail["missing_ratio"] = missingRatio
	if missingRatio > g.thresholds.MissingRatioLimit {
		stopReasons = append(stopReasons, fmt.Sprintf("missing data ratio %.3f exceeds %.2f", missingRatio, g.thresholds.MissingRatioLimit))
	}

	zAbsMax := 0.0
	for _, v := range scaledLast {
		if a := math.Abs(v); a > zAbsMax {
			zAbsMax = a
		}
	}
	detail["z_abs_max"] = zAbsMax
	if zAbsMax > g.thresholds.ZScoreLimit {
		stopReasons = append(stopReasons, fmt.Sprintf("max feature z-score %.2f exceeds %.1f", zAbsMax, g.thresholds.ZScoreLimit))
	}

	// Identity-covariance approximation of squared Mahalanobis distance.
	mahalanobis := 0.0
	for _, v := range scaledLast {
		mahalanobis += v * v
	}
	detail["mahalanobis_approx"] = mahalanobis
	if mahalanobis > g.thresholds.MahalanobisStop {
		stopReasons = append(stopReasons, fmt.Sprintf("distribution distance %.2f exceeds %.1f", mahalanobis, g.thresholds.MahalanobisStop))
	} else if mahalanobis > g.thresholds.MahalanobisWarn {
		warnReasons = append(warnReasons, fmt.Sprintf("distribution distance %.2f exceeds %.1f", mahalanobis, g.thresholds.MahalanobisWarn))
	}

	confidence := 0.5
	if est != nil {
		confidence = ml.ConfidenceScore(est, scaledLast)
	}
	detail["confidence_estimate"] = confidence
	if confidence < g.thresholds.ConfidenceFloor {
		warnReasons = append(warnReasons, fmt.Sprintf("confidence estimate %.2f below %.2f", confidence, g.thresholds.ConfidenceFloor))
	}

	status := models.HealthOK
	reasons := []string{}
	switch {
	case len(stopReasons) > 0:
		status = models.HealthStop
		reasons = append(stopReasons, warnReasons...)
	case len(warnReasons) > 0:
		status = models.HealthWarning
		reasons = warnReasons
	}

	return &models.HealthReport{
		Status:    status,
		Detail:    detail,
		Reasons:   reasons,
		CheckedAt: time.Now(),
	}
}
