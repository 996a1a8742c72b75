package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for callers to classify failures.
var (
	// ErrConflict indicates a record with the same signature already exists.
	ErrConflict = errors.New("record already exists")

	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable indicates a downstream dependency failure. Callers may
	// retry; nothing was persisted.
	ErrUnavailable = errors.New("service unavailable")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
