package entity

import "errors"

// Domain errors
var (
	// Chat errors
	ErrEmptyMessage = errors.New("message required")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Vector store errors
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrStoreNotReady     = errors.New("vector store not initialized")
)
