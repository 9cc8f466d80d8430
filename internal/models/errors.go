package models

import (
	"errors"
	"fmt"
)

// Validation errors. Always surfaced synchronously to the caller.
var (
	ErrModelNotFound    = errors.New("model not found")
	ErrUnknownModelType = errors.New("unknown model type")
	ErrEnsembleTooSmall = errors.New("ensemble requires at least two models")
)

// DataError reports invalid or mismatched input data, such as an inference
// table missing a column the model was trained on.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return "data error: " + e.Msg }

// NewDataError builds a DataError with a formatted message.
func NewDataError(format string, args ...any) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// ModelError reports a failure while fitting or evaluating a model.
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string { return fmt.Sprintf("model error during %s: %v", e.Op, e.Err) }

func (e *ModelError) Unwrap() error { return e.Err }

// GateBlockedError signals that the health gate returned STOP for this
// input. It is not a transient fault: no prediction exists and the caller
// must not trust any prediction for the same input.
type GateBlockedError struct {
	ModelName string
	Report    *HealthReport
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("health gate blocked prediction for model %q: %v", e.ModelName, e.Report.Reasons)
}
