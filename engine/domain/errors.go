package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine surface.
var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrNotFound   = errors.New("not found")
	ErrBadVector  = errors.New("embedding has wrong dimensionality")
)

// ExtractionError marks a failure in the intent-extraction stage. It is the
// only stage failure that aborts a search; every later stage degrades to
// fewer items instead of erroring.
type ExtractionError struct {
	Op  string // "extract" or "embed"
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError wraps err as a fatal extraction failure.
func NewExtractionError(op string, err error) *ExtractionError {
	return &ExtractionError{Op: op, Err: err}
}

// IsExtractionError reports whether err is (or wraps) an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
