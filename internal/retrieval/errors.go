package retrieval

import (
	"errors"
	"fmt"
)

var errEmptyEmbedding = errors.New("embedding service returned an empty vector")

func errDimensionMismatch(got, want int) error {
	return fmt.Errorf("embedding dimension mismatch: got %d, want %d", got, want)
}

// The retriever reports failure through these three types so callers can
// branch with errors.As and degrade to an unaugmented prompt instead of
// failing the turn.

// ValidationError reports empty or malformed query input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// EmbeddingError reports an embedding service failure or a malformed
// embedding response.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// RetrievalError reports a similarity-search collaborator failure.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("similarity search failed: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
