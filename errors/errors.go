// Package errors provides error handling for recorderd.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, error wrapping with context, and sentinel-based classification.
//
// Usage:
//
//	// Wrap with context
//	if err := sup.Launch(job); err != nil {
//	    return errors.Wrap(err, "failed to launch capture")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // respond 404
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllDetails = crdb.GetAllDetails
)

// Error inspection
var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Common sentinel errors for use across recorderd.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested job does not exist
	ErrNotFound = New("not found")

	// ErrInvalidSettings indicates recorder settings failed validation
	ErrInvalidSettings = New("invalid settings")

	// ErrSlotsFull indicates all recorder job slots are occupied
	ErrSlotsFull = New("all recorder slots are full")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidSettingsError checks if an error is or wraps ErrInvalidSettings
func IsInvalidSettingsError(err error) bool {
	return err != nil && Is(err, ErrInvalidSettings)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidSettingsError creates a validation error with a formatted message
func NewInvalidSettingsError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidSettings, Newf(format, args...).Error())
}
