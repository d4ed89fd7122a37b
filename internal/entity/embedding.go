package entity

import "fmt"

// EmbeddingRequest is the payload sent to the embedding service.
type EmbeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

// EmbeddingFormatError reports a raw embedding payload that could not be
// normalized into a flat numeric vector.
type EmbeddingFormatError struct {
	Shape string
}

func (e *EmbeddingFormatError) Error() string {
	return fmt.Sprintf("unrecognized embedding format: %s", e.Shape)
}
