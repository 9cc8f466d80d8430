package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRegistered(t *testing.T) {
	PredictionsTotal.WithLabelValues("m", "ok").Inc()
	GateVerdicts.WithLabelValues("OK").Inc()
	BatchItemsTotal.WithLabelValues("failed").Inc()
	TrainingDuration.Observe(0.25)
	RegistrySize.Set(3)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(PredictionsTotal), 1)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(GateVerdicts), 1)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(BatchItemsTotal), 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(RegistrySize))
}
