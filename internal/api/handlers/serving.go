package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/quantora/mlserve/internal/dataset"
	"github.com/quantora/mlserve/internal/health"
	"github.com/quantora/mlserve/internal/lifecycle"
	"github.com/quantora/mlserve/internal/ml"
	"github.com/quantora/mlserve/internal/models"
	"github.com/quantora/mlserve/internal/predictor"
	"github.com/quantora/mlserve/internal/registry"
)

// ServingHandler exposes the model-serving operations over HTTP.
type ServingHandler struct {
	registry  *registry.Registry
	pipeline  *predictor.Pipeline
	lifecycle *lifecycle.Manager
	gate      *health.Gate
	logger    *logrus.Logger
}

// NewServingHandler creates the serving handler.
func NewServingHandler(reg *registry.Registry, pipe *predictor.Pipeline, lc *lifecycle.Manager, gate *health.Gate, logger *logrus.Logger) *ServingHandler {
	return &ServingHandler{registry: reg, pipeline: pipe, lifecycle: lc, gate: gate, logger: logger}
}

// FramePayload is the wire form of a time-indexed data table.
type FramePayload struct {
	Index   []time.Time          `json:"index" binding:"required"`
	Columns map[string][]float64 `json:"columns" binding:"required"`
}

func (p *FramePayload) toFrame() (*dataset.Frame, error) {
	f := dataset.New(p.Index)
	for name, values := range p.Columns {
		if err := f.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return f, nil
}

type TrainRequest struct {
	ModelType    string       `json:"model_type" binding:"required"`
	TargetColumn string       `json:"target_column" binding:"required"`
	Name         string       `json:"name"`
	Data         FramePayload `json:"data" binding:"required"`
}

func (h *ServingHandler) Train(c *gin.Context) {
	var req TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	modelType, err := ml.ParseModelType(req.ModelType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frame, err := req.Data.toFrame()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, err := h.registry.Train(c.Request.Context(), modelType, ml.Hyperparams{}, frame, req.TargetColumn, req.Name)
	if err != nil {
		h.renderError(c, err)
		return
	}
	rec, _ := h.registry.Get(name)
	c.JSON(http.StatusCreated, gin.H{
		"name":        name,
		"performance": rec.Performance,
		"features":    rec.FeatureColumns,
	})
}

type PredictRequest struct {
	Symbol              string       `json:"symbol"`
	ConfidenceThreshold float64      `json:"confidence_threshold"`
	Data                FramePayload `json:"data" binding:"required"`
}

func (h *ServingHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frame, err := req.Data.toFrame()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.pipeline.Predict(c.Request.Context(), c.Param("name"), req.Symbol, frame, req.ConfidenceThreshold)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type BatchPredictRequest struct {
	Items []struct {
		Symbol string       `json:"symbol"`
		Data   FramePayload `json:"data" binding:"required"`
	} `json:"items" binding:"required"`
}

func (h *ServingHandler) BatchPredict(c *gin.Context) {
	var req BatchPredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items := make([]predictor.BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		frame, err := it.Data.toFrame()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		items = append(items, predictor.BatchItem{Symbol: it.Symbol, Frame: frame})
	}

	results := h.pipeline.BatchPredict(c.Request.Context(), c.Param("name"), items)
	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"requested": len(items),
		"succeeded": len(results),
	})
}

type EnsembleRequest struct {
	Models  []string  `json:"models" binding:"required"`
	Weights []float64 `json:"weights"`
}

func (h *ServingHandler) CreateEnsemble(c *gin.Context) {
	var req EnsembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name, err := h.pipeline.CreateEnsemble(req.Models, req.Weights)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name})
}

// ModelSummary is the list view of one registry entry.
type ModelSummary struct {
	Name           string                  `json:"name"`
	FeatureColumns []string                `json:"feature_columns"`
	Performance    models.ModelPerformance `json:"performance"`
}

func (h *ServingHandler) ListModels(c *gin.Context) {
	recs := h.registry.Records()
	out := make([]ModelSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ModelSummary{
			Name:           rec.Name,
			FeatureColumns: rec.FeatureColumns,
			Performance:    rec.Performance,
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": out, "count": len(out), "training": h.registry.Training()})
}

func (h *ServingHandler) SaveModel(c *gin.Context) {
	if err := h.lifecycle.Save(c.Param("name")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": c.Param("name")})
}

func (h *ServingHandler) LoadModel(c *gin.Context) {
	name := c.Param("name")
	if !h.lifecycle.Load(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "model artifacts not found", "name": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": name})
}

type RetrainRequest struct {
	TargetColumn string       `json:"target_column" binding:"required"`
	Data         FramePayload `json:"data" binding:"required"`
}

func (h *ServingHandler) Retrain(c *gin.Context) {
	var req RetrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	frame, err := req.Data.toFrame()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	renamed := h.lifecycle.RetrainAll(c.Request.Context(), frame, req.TargetColumn)
	c.JSON(http.StatusOK, gin.H{"retrained": renamed})
}

type CleanupRequest struct {
	// Pointer so that keep=0 (evict everything) survives required-field
	// validation.
	Keep *int `json:"keep" binding:"required"`
}

func (h *ServingHandler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Keep < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keep must be >= 0"})
		return
	}
	evicted := h.lifecycle.Cleanup(*req.Keep)
	c.JSON(http.StatusOK, gin.H{"evicted": evicted, "remaining": h.registry.Len()})
}

func (h *ServingHandler) HealthReport(c *gin.Context) {
	report := h.gate.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no health report yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ServingHandler) History(c *gin.Context) {
	history := h.registry.History()
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// renderError maps the error taxonomy onto HTTP statuses.
func (h *ServingHandler) renderError(c *gin.Context, err error) {
	var (
		gateErr  *models.GateBlockedError
		dataErr  *models.DataError
		modelErr *models.ModelError
	)
	switch {
	case errors.As(err, &gateErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "prediction blocked by health gate",
			"report": gateErr.Report,
		})
	case errors.Is(err, models.ErrModelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnknownModelType), errors.Is(err, models.ErrEnsembleTooSmall):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &dataErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &modelErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Unhandled serving error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
