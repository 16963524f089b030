// Package observability defines the structured logging primitives shared
// across the simulator, tagging every record with the simulation's virtual
// time rather than wall-clock time.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F is a short constructor for Field, used at call sites.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger captures the structured logging behaviours used across the
// simulator. Implementations must be safe for concurrent use even though
// the kernel itself is single-threaded, since adapters (e.g. priceticker)
// run on their own goroutines.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// WithSimTime returns a Logger that tags every subsequent record with
	// the given virtual clock time.
	WithSimTime(t time.Time) Logger
}

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field)      {}
func (noopLogger) Info(string, ...Field)       {}
func (noopLogger) Error(string, ...Field)      {}
func (noopLogger) WithSimTime(time.Time) Logger { return noopLogger{} }

// zerologLogger adapts the zerolog structured logger to the Logger
// interface. The backtest command installs it via SetLogger; the engine
// facade itself defaults to whatever Log() returns.
type zerologLogger struct {
	z zerolog.Logger
}

// NewZerolog builds a Logger writing to w (console-formatted when pretty
// is true, otherwise newline-delimited JSON — matching how event logs vs.
// ordinary logs are configured per §6 of the spec).
func NewZerolog(w io.Writer, pretty bool) Logger {
	if w == nil {
		w = os.Stdout
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Logger()
	return &zerologLogger{z: z}
}

func (l *zerologLogger) Debug(msg string, fields ...Field) { l.event(l.z.Debug(), fields).Msg(msg) }
func (l *zerologLogger) Info(msg string, fields ...Field)  { l.event(l.z.Info(), fields).Msg(msg) }
func (l *zerologLogger) Error(msg string, fields ...Field) { l.event(l.z.Error(), fields).Msg(msg) }

func (l *zerologLogger) WithSimTime(t time.Time) Logger {
	return &zerologLogger{z: l.z.With().Time("simulation_time", t).Logger()}
}

func (l *zerologLogger) event(evt *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		evt = evt.Interface(f.Key, f.Value)
	}
	return evt
}
