// Package errors provides error handling for traitmint.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Operator-facing hints
//
// On top of the re-exports it defines the fatal error taxonomy of the
// generation engine. Every fatal condition wraps one of the sentinels below,
// so callers branch with errors.Is:
//
//	if errors.Is(err, errors.ErrCapacity) {
//	    // ask for fewer artifacts or add more trait values
//	}
//
// Rejected samples (a FORBID rule firing, a duplicate fingerprint) are not
// errors and never surface through this package.
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
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
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Fatal error taxonomy of the generation engine.
var (
	// ErrConfiguration indicates malformed or duplicate rules, zero-weight
	// distribution pairs, group weights that do not sum to 1, or invalid settings.
	ErrConfiguration = New("configuration error")

	// ErrCatalogGap indicates a property has no usable values under a selected group.
	ErrCatalogGap = New("catalog gap")

	// ErrCapacity indicates the requested amount exceeds the distinct combinations available.
	ErrCapacity = New("capacity exceeded")

	// ErrPrecision indicates the amount is too small to realize the rarest trait at least once.
	ErrPrecision = New("precision too low")

	// ErrResourceConflict indicates the output directory already holds artifacts from a previous run.
	ErrResourceConflict = New("resource conflict")
)

// NewConfigurationError creates a configuration error with a formatted message.
func NewConfigurationError(format string, args ...interface{}) error {
	return Wrapf(ErrConfiguration, format, args...)
}

// NewCatalogGapError creates a catalog-gap error with a formatted message.
func NewCatalogGapError(format string, args ...interface{}) error {
	return WithHint(Wrapf(ErrCatalogGap, format, args...),
		"add at least one asset for the property under this group, or give the group weight 0")
}

// NewCapacityError creates a capacity error with a formatted message.
func NewCapacityError(format string, args ...interface{}) error {
	return WithHint(Wrapf(ErrCapacity, format, args...),
		"add more trait values or reduce generate.amount")
}

// NewPrecisionError creates a precision error with a formatted message.
func NewPrecisionError(format string, args ...interface{}) error {
	return WithHint(Wrapf(ErrPrecision, format, args...),
		"increase generate.amount or raise the weight of the rarest trait")
}

// NewResourceConflictError creates a resource-conflict error with a formatted message.
func NewResourceConflictError(format string, args ...interface{}) error {
	return WithHint(Wrapf(ErrResourceConflict, format, args...),
		"back up and empty the output directory before generating again")
}

// IsConfigurationError checks if an error is or wraps ErrConfiguration
func IsConfigurationError(err error) bool {
	return err != nil && Is(err, ErrConfiguration)
}

// IsFatal reports whether err belongs to the engine's fatal taxonomy.
func IsFatal(err error) bool {
	return err != nil && IsAny(err, ErrConfiguration, ErrCatalogGap, ErrCapacity, ErrPrecision, ErrResourceConflict)
}
