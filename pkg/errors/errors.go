package errors

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	// ErrNotFound is returned when a requested memory record is not found
	ErrNotFound = errors.New("memory not found")

	// ErrEntityNotFound is returned when a named entity does not exist
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidInput is returned when the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable is returned when the memory store is unavailable
	ErrStoreUnavailable = errors.New("memory store unavailable")

	// ErrProviderUnavailable is returned when no dense embedding provider is configured
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// Wrap wraps an error with additional context
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience function that wraps errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target, and if so, sets
// target to that error value and returns true. Otherwise, it returns false.
// This is a convenience function that wraps errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
