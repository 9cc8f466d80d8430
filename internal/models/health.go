package models

import "time"

// HealthStatus is the verdict of the pre-inference health gate.
type HealthStatus string

const (
	HealthOK      HealthStatus = "OK"
	HealthWarning HealthStatus = "WARNING"
	HealthStop    HealthStatus = "STOP"
)

// HealthReport captures a single health gate evaluation. It is created fresh
// on every inference call and never mutated afterwards.
type HealthReport struct {
	Status    HealthStatus       `json:"status"`
	Detail    map[string]float64 `json:"detail"`
	Reasons   []string           `json:"reasons"`
	CheckedAt time.Time          `json:"checked_at"`
}

// Blocked reports whether the gate verdict forbids running the model.
func (r *HealthReport) Blocked() bool {
	return r.Status == HealthStop
}
