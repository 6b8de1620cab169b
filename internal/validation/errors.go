package validation

import (
	"errors"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects every rule a write violated. It always blocks the write.
type Error struct {
	Fields []FieldError
}

func New(field, message string) *Error {
	e := &Error{}
	e.Add(field, message)
	return e
}

func (e *Error) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Merge appends the fields of another validation error. Other errors are ignored.
func (e *Error) Merge(err error) {
	var other *Error
	if errors.As(err, &other) && other != nil {
		e.Fields = append(e.Fields, other.Fields...)
	}
}

// Err returns nil when nothing was recorded so callers can `return v.Err()`.
func (e *Error) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func IsValidationError(err error) bool {
	var v *Error
	return errors.As(err, &v)
}
