package models

import "time"

// ConfidenceLevel is the ordinal bucket derived from a confidence score.
type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
)

// ConfidenceLevelFromScore maps a score in [0,1] onto its ordinal level.
// Boundary values belong to the higher bucket.
func ConfidenceLevelFromScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.90:
		return ConfidenceVeryHigh
	case score >= 0.80:
		return ConfidenceHigh
	case score >= 0.70:
		return ConfidenceMedium
	case score >= 0.60:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// PredictionInterval is a symmetric interval around the predicted price.
type PredictionInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PredictionResult is the immutable output of a single inference call.
type PredictionResult struct {
	Symbol             string             `json:"symbol"`
	PredictedPrice     float64            `json:"predicted_price"`
	Confidence         ConfidenceLevel    `json:"confidence"`
	ConfidenceScore    float64            `json:"confidence_score"`
	ModelName          string             `json:"model_name"`
	PredictionTime     time.Time          `json:"prediction_time"`
	FeaturesUsed       []string           `json:"features_used"`
	FeatureImportances map[string]float64 `json:"feature_importances,omitempty"`
	Interval           PredictionInterval `json:"prediction_interval"`
	Health             *HealthReport      `json:"health,omitempty"`
}

// ModelPerformance holds the rolling evaluation metrics of a stored model.
// SuccessRate is the share of inference attempts that were served rather
// than blocked by the health gate.
type ModelPerformance struct {
	MSE             float64   `json:"mse"`
	RMSE            float64   `json:"rmse"`
	MAE             float64   `json:"mae"`
	R2              float64   `json:"r2"`
	PredictionCount int64     `json:"prediction_count"`
	BlockedCount    int64     `json:"blocked_count"`
	SuccessRate     float64   `json:"success_rate"`
	LastUpdated     time.Time `json:"last_updated"`
}
