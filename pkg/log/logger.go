package log

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	fcerrors "github.com/YuminosukeSato/forestcover/pkg/errors"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewZerologLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())
)

func init() {
	// Err() on an event carrying .Stack() renders the cockroachdb stack.
	zerolog.ErrorStackMarshaler = extractStacktrace
	zerolog.ErrorStackFieldName = StacktraceKey
}

// SetupLogger configures the process-wide logger to write human-readable
// lines to w at the given level ("debug", "info", "warn", "error").
// It also routes library warnings (ConvergenceWarning, ...) to the logger.
func SetupLogger(level string, w io.Writer) error {
	lvl, err := ToLogLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(toZerologLevel(lvl)).
		With().Timestamp().Logger()
	SetLogger(NewZerologLogger(zl))

	fcerrors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(warning.Error())
	})
	return nil
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fcerrors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// GetLoggerWithName returns the process-wide logger tagged with a component.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// LogError logs err with its stack at error level on the process-wide logger.
func LogError(err error, msg string, fields ...any) {
	GetLogger().Error(msg, append([]any{err}, fields...)...)
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps zl.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) { l.write(l.zl.Debug(), msg, fields) }

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) { l.write(l.zl.Info(), msg, fields) }

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) { l.write(l.zl.Warn(), msg, fields) }

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) { l.write(l.zl.Error(), msg, fields) }

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	zlvl := toZerologLevel(level)
	return zlvl >= l.zl.GetLevel() && zlvl >= zerolog.GlobalLevel()
}

func (l *ZerologLogger) write(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Stack().Err(err)
			if m, ok := errorObject(err); ok {
				ev = ev.Object("error.detail", m)
			}
			fields = fields[1:]
		}
	}
	ev.Fields(normalizeFields(fields)).Msg(msg)
}

// normalizeFields drops a trailing key without value and stringifies keys.
func normalizeFields(fields []any) []any {
	if len(fields)%2 == 1 {
		fields = fields[:len(fields)-1]
	}
	out := make([]any, len(fields))
	for i := 0; i < len(fields); i += 2 {
		if k, ok := fields[i].(string); ok {
			out[i] = k
		} else {
			out[i] = "!BADKEY"
		}
		out[i+1] = fields[i+1]
	}
	return out
}

// errorObject finds the first structured error in the chain.
func errorObject(err error) (zerolog.LogObjectMarshaler, bool) {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if m, ok := e.(zerolog.LogObjectMarshaler); ok {
			return m, true
		}
	}
	return nil, false
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func extractStacktrace(err error) interface{} {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return nil
}
