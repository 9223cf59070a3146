package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across traitmint.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRunID  = "run_id"
	FieldWorker = "worker"

	// Components
	FieldComponent = "component"

	// Generation
	FieldIndex       = "index"
	FieldGroup       = "group"
	FieldProperty    = "property"
	FieldValue       = "value"
	FieldFingerprint = "fingerprint"
	FieldAttempts    = "attempts"
	FieldRange       = "range"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount      = "count"
	FieldAmount     = "amount"
	FieldTotalCount = "total_count"

	// Files and paths
	FieldPath = "path"
	FieldDir  = "dir"
)

type contextKey string

const (
	runIDKey     contextKey = "logger_run_id"
	componentKey contextKey = "logger_component"
)

// WithRunID adds a generation run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		fields = append(fields, FieldRunID, runID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns base enriched with the fields carried by ctx.
func LoggerFromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	base = OrNop(base)
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	coord := generate.NewCoordinator(cfg, deps, logger.ComponentLogger("generate"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
