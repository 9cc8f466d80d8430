package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the serving pipeline. Registered on the default
// registry and exposed through the /metrics endpoint.
var (
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlserve",
		Name:      "predictions_total",
		Help:      "Inference calls by model and outcome (ok, warning, blocked, error).",
	}, []string{"model", "outcome"})

	GateVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlserve",
		Name:      "health_gate_verdicts_total",
		Help:      "Health gate evaluations by verdict.",
	}, []string{"status"})

	TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mlserve",
		Name:      "training_duration_seconds",
		Help:      "Wall time of full train-and-evaluate runs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	RegistrySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mlserve",
		Name:      "registry_models",
		Help:      "Models currently held in the registry.",
	})

	BatchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlserve",
		Name:      "batch_items_total",
		Help:      "Batch prediction items by result.",
	}, []string{"result"})
)
