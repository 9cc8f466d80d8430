package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, 10, cfg.Models.MaxModels)
	assert.Equal(t, 1000, cfg.Models.HistorySize)
	assert.Equal(t, 4, cfg.Models.BatchWorkers)
	assert.Equal(t, 0.01, cfg.Models.RelevanceThreshold)

	assert.Equal(t, 0.10, cfg.HealthGate.MissingRatioLimit)
	assert.Equal(t, 5.0, cfg.HealthGate.ZScoreLimit)
	assert.Equal(t, 25.0, cfg.HealthGate.MahalanobisStop)
	assert.Equal(t, 16.0, cfg.HealthGate.MahalanobisWarn)
	assert.Equal(t, 0.6, cfg.HealthGate.ConfidenceFloor)

	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "5s", cfg.Notifications.WebhookTimeout)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HEALTH_WEBHOOK_URL", "https://alerts.example.com/hook")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://alerts.example.com/hook", cfg.Notifications.WebhookURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("MODELS_MAX_MODELS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadWebhookTimeout(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("NOTIFICATIONS_WEBHOOK_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}
