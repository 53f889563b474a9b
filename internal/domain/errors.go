package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing catalog entity.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals user input outside accepted bounds.
	ErrValidation = errors.New("validation failed")
	// ErrOracleUnavailable signals a transport, timeout or parse failure of the language model.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrOracleDisabled signals that no oracle credentials are configured.
	ErrOracleDisabled = errors.New("oracle disabled")
	// ErrGeocode signals a failed address lookup.
	ErrGeocode = errors.New("geocode failed")
	// ErrMap signals a failed static map fetch.
	ErrMap = errors.New("map unavailable")
	// ErrStorage signals a catalog or session backend failure.
	ErrStorage = errors.New("storage error")
	// ErrSessionInconsistency signals a missing prerequisite in the search context.
	ErrSessionInconsistency = errors.New("session inconsistency")
)

// MissingFieldError wraps ErrSessionInconsistency with the absent context field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s is not set", ErrSessionInconsistency.Error(), e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrSessionInconsistency }

// NewMissingField creates a session inconsistency error for the given field.
func NewMissingField(field string) error {
	return &MissingFieldError{Field: field}
}
