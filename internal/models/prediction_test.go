package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceLevelFromScore(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		expected ConfidenceLevel
	}{
		{"very high", 0.95, ConfidenceVeryHigh},
		{"boundary 0.9 is very high", 0.90, ConfidenceVeryHigh},
		{"high", 0.85, ConfidenceHigh},
		{"boundary 0.8 is high", 0.80, ConfidenceHigh},
		{"medium", 0.75, ConfidenceMedium},
		{"boundary 0.7 is medium", 0.70, ConfidenceMedium},
		{"low", 0.65, ConfidenceLow},
		{"boundary 0.6 is low", 0.60, ConfidenceLow},
		{"very low", 0.59, ConfidenceVeryLow},
		{"zero", 0.0, ConfidenceVeryLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConfidenceLevelFromScore(tt.score))
		})
	}
}

func TestHealthReportBlocked(t *testing.T) {
	assert.True(t, (&HealthReport{Status: HealthStop}).Blocked())
	assert.False(t, (&HealthReport{Status: HealthWarning}).Blocked())
	assert.False(t, (&HealthReport{Status: HealthOK}).Blocked())
}

func TestGateBlockedErrorMessage(t *testing.T) {
	err := &GateBlockedError{
		ModelName: "linear_1",
		Report:    &HealthReport{Status: HealthStop, Reasons: []string{"empty feature set"}},
	}
	assert.Contains(t, err.Error(), "linear_1")
	assert.Contains(t, err.Error(), "empty feature set")
}
