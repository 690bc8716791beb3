package rejection

import (
	"errors"
	"fmt"

	"github.com/samcharles93/specdec/internal/draft"
)

var (
	// ErrShapeMismatch reports logits, offsets, draft lengths or per-request
	// tables that disagree with each other.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidMetadata reports sampling metadata that cannot be honoured.
	ErrInvalidMetadata = errors.New("invalid sampling metadata")

	ErrCapacityExceeded = draft.ErrCapacityExceeded
	ErrInvalidToken     = draft.ErrInvalidToken
	ErrEmptyBatch       = draft.ErrEmptyBatch
)

// ShapeError describes one mismatched dimension.
type ShapeError struct {
	Field string
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: %s: want %d, got %d", e.Field, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

func shapeError(field string, want, got int) error {
	return &ShapeError{Field: field, Want: want, Got: got}
}
