package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingField reports a required path that is absent or null.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedField reports a path that is present but has the wrong shape.
	ErrMalformedField = errors.New("malformed field")
	// ErrNullField reports an accessor used on a nil object reference.
	// It is also an ErrMissingField.
	ErrNullField = fmt.Errorf("null object: %w", ErrMissingField)
)

// FieldError ties an accessor failure to the path that caused it.
type FieldError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *FieldError) Error() string {
	return fmt.Sprintf("document: %s: %v", e.Path, e.Err)
}

// Unwrap returns the sentinel cause.
func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(path []string, err error) error {
	return &FieldError{Path: strings.Join(path, "."), Err: err}
}
