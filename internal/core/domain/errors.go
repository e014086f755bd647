package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Validation failures are never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates an embedding vector does not match the
	// dimension the collection was created with. This is a configuration
	// error and is fatal for the affected document - vectors are never
	// silently reshaped.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRateLimited indicates an upstream service rejected a call due to
	// rate limiting. Retryable with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates an upstream service failed transiently
	// (timeout, 5xx). Retryable with backoff.
	ErrUnavailable = errors.New("service unavailable")

	// ErrEmbeddingFailed indicates embedding generation failed after all
	// retry attempts were exhausted.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrGenerationFailed indicates the generation service failed to produce
	// an answer. Distinct from the empty-result condition: retrieval
	// succeeded but the answer could not be generated.
	ErrGenerationFailed = errors.New("answer generation failed")

	// ErrSourceUnavailable indicates the document source could not be
	// reached or refused the request.
	ErrSourceUnavailable = errors.New("document source unavailable")
)
