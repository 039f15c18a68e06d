package models

import "errors"

// Run-level errors. They abort a comparison before any node is produced.
var (
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrMissingRightSide   = errors.New("missing right side")
	ErrUnknownMode        = errors.New("unknown comparison mode")
	ErrUnknownAlgorithm   = errors.New("unknown hash algorithm")
	ErrBaselineAlgorithms = errors.New("baseline algorithms do not cover the requested set")
	ErrRootNotFound       = errors.New("root not found")
	ErrRootUnreadable     = errors.New("root cannot be enumerated")
	ErrCanceled           = errors.New("comparison canceled")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
