package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrLessonNotFound signals a lesson id with no stored plan or index.
	ErrLessonNotFound = fmt.Errorf("lesson %w", ErrNotFound)
	// ErrSessionNotFound signals an unknown tutoring session.
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	// ErrInvalidDocument signals an upload with no usable text.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnsupportedFormat signals an upload in a format no extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrUpstream signals an LLM call that failed after all retries.
	ErrUpstream = errors.New("llm upstream error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// UpstreamError is returned by the LLM gateway once every attempt has failed.
// It carries the last underlying failure.
type UpstreamError struct {
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrUpstream.Error(), e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrUpstream as a match so callers can use errors.Is.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// NewUpstreamError wraps the last attempt failure.
func NewUpstreamError(attempts int, err error) error {
	return &UpstreamError{Attempts: attempts, Err: err}
}
