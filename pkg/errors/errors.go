package errors

import (
	"errors"
	"fmt"
)

// Standard error types
var (
	ErrAuthentication  = errors.New("authentication error")
	ErrConfiguration   = errors.New("configuration error")
	ErrHTTPRequest     = errors.New("HTTP request error")
	ErrHTTPResponse    = errors.New("HTTP response error")
	ErrGraphQL         = errors.New("GraphQL error")
	ErrExtraction      = errors.New("data extraction error")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrUnsupported     = errors.New("unsupported feature")
	ErrValidation      = errors.New("validation error")
)

// WrapError wraps an error with a standard error type. Both the type
// and the original cause stay on the error chain, so callers can match
// either with errors.Is.
func WrapError(err error, errType error, message string) error {
	return fmt.Errorf("%w: %s: %w", errType, message, err)
}

// Is provides a convenience wrapper around errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As provides a convenience wrapper around errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap provides a convenience wrapper around errors.Unwrap
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
