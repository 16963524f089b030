// Package errs provides the structured error taxonomy shared across the
// simulator: a closed set of kinds plus an envelope carrying the failing
// component, a message, and an optional cause.
package errs

import (
	"strconv"
	"strings"
)

// Kind identifies a category of simulator failure. Kinds are not Go error
// types themselves — they classify the single envelope type E so callers
// can branch with errors.Is / Kind() without type-switching on many types.
type Kind string

const (
	// KindConfiguration covers invalid start/end times, unknown exchanges,
	// or missing data paths. Raised at construction; fatal.
	KindConfiguration Kind = "configuration"
	// KindPriceUnavailable is raised by the Prices View when no row exists
	// for an asset at a requested time.
	KindPriceUnavailable Kind = "price_unavailable"
	// KindSymbolNotFound is raised by the Prices View for unknown symbols.
	KindSymbolNotFound Kind = "symbol_not_found"
	// KindOutOfRange is raised by the Prices View for dates outside the
	// backing calendar.
	KindOutOfRange Kind = "out_of_range"
	// KindInvalidOrder is returned by the broker for malformed orders
	// (e.g. amount == 0). No event is emitted.
	KindInvalidOrder Kind = "invalid_order"
	// KindRateLimited is returned by the broker when an order submission
	// exceeds the configured rate limit.
	KindRateLimited Kind = "rate_limited"
	// KindSchemaValidation is raised when a data source row fails schema
	// checks. Fatal at first occurrence.
	KindSchemaValidation Kind = "schema_validation"
)

// E is the structured error envelope used throughout the simulator.
type E struct {
	Component string
	Kind      Kind
	Message   string

	cause error
}

// Option configures an E at construction time.
type Option func(*E)

// New constructs an error envelope for the given component and kind.
func New(component string, kind Kind, opts ...Option) *E {
	e := &E{Component: strings.TrimSpace(component), Kind: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message.
func WithMessage(msg string) Option {
	trimmed := strings.TrimSpace(msg)
	return func(e *E) { e.Message = trimmed }
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *E) { e.cause = cause }
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string
	component := e.Component
	if component == "" {
		component = "simulator"
	}
	parts = append(parts, "component="+component)
	parts = append(parts, "kind="+string(e.Kind))
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is an *E with the same Kind, so callers can
// write errors.Is(err, errs.New("", errs.KindInvalidOrder)).
func (e *E) Is(target error) bool {
	other, ok := target.(*E)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
