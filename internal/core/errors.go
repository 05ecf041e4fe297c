package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline. Callers classify failures with
// errors.Is; operational context is attached via fmt.Errorf wrapping.
var (
	// ErrInvalidParams reports caller-supplied configuration that violates a
	// documented constraint. Never retried.
	ErrInvalidParams = errors.New("invalid params")

	// ErrEmptyDocument reports a document with no extractable text.
	ErrEmptyDocument = errors.New("empty document")

	// ErrInvalidInput reports unusable input, e.g. an empty string handed to
	// the embedding gateway.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch reports a vector whose length disagrees with the
	// collection it targets. Always fatal to the call.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrModelMismatch reports a query embedded with a model different from
	// the one the collection was built with.
	ErrModelMismatch = errors.New("model mismatch")

	// ErrAlreadyExists reports a collection name taken with a different
	// (dimension, metric). Creating an identical collection is a no-op, not
	// this error.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound reports a missing collection.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedFormat reports a parser tool that cannot handle the
	// supplied input.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrProviderTimeout reports an external provider call that exceeded its
	// deadline.
	ErrProviderTimeout = errors.New("provider timeout")
)

// ProviderError wraps a failure from an external embedding or generation
// provider. Batch is the zero-based index of the failing batch (-1 when the
// call was not batched). The whole call fails; no partial results are kept.
type ProviderError struct {
	Batch int
	Cause error
}

func (e *ProviderError) Error() string {
	if e.Batch < 0 {
		return fmt.Sprintf("provider error: %v", e.Cause)
	}
	return fmt.Sprintf("provider error (batch %d): %v", e.Batch, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// GenerationError wraps a generation provider failure. The orchestrator
// surfaces it without retry; retry policy belongs to the provider boundary.
type GenerationError struct {
	Model string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (model %s): %v", e.Model, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// ParseError wraps a document parser failure.
type ParseError struct {
	Tool  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed (tool %s): %v", e.Tool, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }
