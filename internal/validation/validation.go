// Package validation turns raw request payloads into sanitized values.
//
// Every Normalize function accumulates all field problems instead of
// stopping at the first one, and always returns its best-effort value so a
// caller can echo corrected form state back to the user. Nothing here
// touches the store.
package validation

import (
	"fmt"
	"strings"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Result is the outcome of a Normalize call.
type Result[T any] struct {
	Valid  bool
	Errors []FieldError
	Value  T
}

type errorList []FieldError

func (l *errorList) add(field, format string, args ...interface{}) {
	*l = append(*l, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func result[T any](value T, errs errorList) Result[T] {
	return Result[T]{Valid: len(errs) == 0, Errors: errs, Value: value}
}

// optionalString trims s and reports whether anything was supplied.
func optionalString(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}
