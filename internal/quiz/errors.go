package quiz

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ValidationError rejects a request before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// ExtractionError means the document produced no usable questions. The
// upload is left in StatusError.
type ExtractionError struct {
	UploadID string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("upload %s: extraction failed: %v", e.UploadID, e.Err)
}
func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError means the question batch could not be committed. Nothing
// from the batch is visible.
type PersistenceError struct {
	UploadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("upload %s: persist questions: %v", e.UploadID, e.Err)
}
func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNoQuestions is wrapped in an ExtractionError when the extractor
// succeeds with an empty result.
var ErrNoQuestions = errors.New("no questions were extracted from the document")

// ErrInvalidTransition is returned when a status change would leave a
// terminal state outside of a reparse.
var ErrInvalidTransition = errors.New("invalid upload status transition")
