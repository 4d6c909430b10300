package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a required field is absent or null.
	ErrMissingField = errors.New("missing required field")

	// ErrWrongType is returned when a field holds a JSON value of the wrong type.
	ErrWrongType = errors.New("wrong type")
)

// ValidationError identifies the account (by position in the document) and the
// field that could not be mapped. Index is -1 for document-level problems.
type ValidationError struct {
	Index int
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("document: field %q: %v", e.Field, e.Err)
	case e.Field == "":
		return fmt.Sprintf("account #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("account #%d: field %q: %v", e.Index, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
