package pipeline

import "errors"

var (
	// ErrSchemaMismatch is returned when input cannot be reconciled with the
	// feature schema, or the schema itself is malformed.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidInput is returned when input cannot be read as one or more records.
	ErrInvalidInput = errors.New("invalid input")
)
