package patient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFormat    = errors.New("invalid format")
	ErrValidationFailed = errors.New("validation failed")
	ErrAlreadyExists    = errors.New("patient already exists")
	ErrNotFound         = errors.New("patient not found")
	ErrInternal         = errors.New("internal failure")
)

// FormatError reports an identifier that could not be parsed.
type FormatError struct {
	Input string
	Code  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid hospital number %q: %s", e.Input, e.Code)
}

func (e *FormatError) Is(target error) bool { return target == ErrInvalidFormat }

// ValidationError carries every rejected field of a write request.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+": "+is.Code)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

func newValidationError(field, code, msg string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Field: field, Status: StatusRejected, Code: code, Message: msg}}}
}
