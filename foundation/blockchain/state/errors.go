package state

import (
	"errors"
	"fmt"
)

// ValidationError is returned when input at the API boundary is missing or
// malformed. No state is changed when this error is returned.
type ValidationError struct {
	Err error
}

// NewValidationError wraps the error as a validation failure.
func NewValidationError(err error) error {
	return &ValidationError{Err: err}
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return ve.Err.Error()
}

// Unwrap provides access to the wrapped error.
func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// =============================================================================

// NetworkError is returned when a peer can't be reached, times out, or
// responds with a failure.
type NetworkError struct {
	Host string
	Err  error
}

// Error implements the error interface.
func (ne *NetworkError) Error() string {
	return fmt.Sprintf("peer %s: %s", ne.Host, ne.Err)
}

// Unwrap provides access to the wrapped error.
func (ne *NetworkError) Unwrap() error {
	return ne.Err
}

// IsNetworkError checks if an error of type NetworkError exists.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
