package ml

import (
	"errors"
	"fmt"

	"gridguard/pipeline"
)

var (
	// ErrModelUnavailable is returned when no usable model is loaded.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrInferenceFailure wraps an error raised by the classifier itself.
	ErrInferenceFailure = errors.New("inference failure")

	ErrInvalidInput   = pipeline.ErrInvalidInput
	ErrSchemaMismatch = pipeline.ErrSchemaMismatch
)

// inferenceFailure keeps cause reachable through errors.Is/As.
func inferenceFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrInferenceFailure, cause)
}
