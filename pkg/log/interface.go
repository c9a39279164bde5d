// Package log provides a structured logging interface for forestcover.
//
// The interface is slog-compatible and backed by zerolog (see logger.go).
// Estimators and the spot-check runner log through it with the ML-specific
// attribute keys defined in attributes.go, while report lines meant for the
// user (cross-validation scores, summaries) are printed to stdout directly.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ModelNameKey, "ScaledRandomForest",
//	)
//	logger.Info("cross-validation finished",
//	    log.OperationKey, log.OperationScore,
//	    log.AccuracyKey, 0.78,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. For Error, an error value passed as
// the first field is attached with its stack trace.
type Logger interface {
	// Debug logs detailed diagnostic information, such as per-fold timings.
	Debug(msg string, fields ...any)

	// Info logs general progress of a run.
	//
	// Example:
	//   logger.Info("fitted pipeline",
	//       log.DurationMsKey, 5432,
	//       log.SamplesKey, 12096,
	//   )
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop the run, e.g. convergence warnings.
	Warn(msg string, fields ...any)

	// Error logs a failure.
	//
	// Example:
	//   logger.Error("writing submission failed",
	//       err,
	//       log.ModelNameKey, "ScaledSVC",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
