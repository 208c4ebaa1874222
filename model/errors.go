package model

import "errors"

// Error kinds surfaced by the query engine. The server layer maps
// these to HTTP statuses; everything else checks them with errors.Is.
var (
	// ErrInvalidInput indicates malformed or empty input. Rejected
	// before any external call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector whose dimension does not
	// match the store's configured dimension. This is a configuration
	// error and is never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrServiceUnavailable indicates the embedding or generation
	// service failed after the retry budget was exhausted. Retryable
	// by the caller.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrStoreCorrupt indicates the persisted vector store failed its
	// integrity check at load. Fatal at startup; the process must not
	// serve queries against a suspect index.
	ErrStoreCorrupt = errors.New("vector store corrupt")
)
