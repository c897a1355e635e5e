// Package models holds the data types shared across the ingestion and query
// pipelines: cases, issues, image references, synonyms, and the error
// taxonomy components report through.
package models

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Components wrap these with fmt.Errorf("...: %w", Err...)
// so callers can classify failures with errors.Is regardless of the message.
var (
	// ErrInput covers a spreadsheet that is missing, unreadable, or lacking
	// a data header. Fatal for that file; a batch caller may skip and continue.
	ErrInput = errors.New("input error")

	// ErrMapping indicates no image-issue matches were found for a file.
	// Ingestion continues with zero images attached.
	ErrMapping = errors.New("mapping warning")

	// ErrDependency covers an external service (embed, rerank, VLM, LLM)
	// being unreachable after the retry budget is exhausted.
	ErrDependency = errors.New("dependency error")

	// ErrValidation indicates text-to-SQL produced unsafe or invalid SQL.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates a relational row already exists and the caller
	// did not pass force_reindex.
	ErrConflict = errors.New("conflict error")

	// ErrPermission indicates an RBAC gate denial.
	ErrPermission = errors.New("permission error")

	// ErrStateInconsistency indicates one store wrote and the other did not.
	ErrStateInconsistency = errors.New("state inconsistency")

	// ErrTimeout indicates a VLM job deadline was exceeded.
	ErrTimeout = errors.New("timeout error")
)

// FieldError is a validation failure tied to one named field, used by the
// text-to-SQL safety validator and the extractor's header/metadata checks.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewFieldError wraps a FieldError with ErrValidation so errors.Is(err, ErrValidation) holds.
func NewFieldError(field, message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, (&FieldError{Field: field, Message: message}).Error())
}
