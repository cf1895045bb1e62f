package logging

import (
	"context"
	"log/slog"
	"time"

	"datamart/internal/fulfillment"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Event tags a line with its event_type.
func Event(eventType string) Attr { return slog.String(FieldEventType, eventType) }

// Hint tells the operator what to try next.
func Hint(hint string) Attr { return slog.String(FieldErrorHint, hint) }

// WithTransaction tags logger with the kind and id of a transaction.
func WithTransaction(logger *slog.Logger, kind fulfillment.Kind, ref int64) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldKind, string(kind)), Int64(FieldTxID, ref))
}

// Percent reports whole-phase completion.
func Percent(percent int) Attr { return slog.Int(FieldProgressPercent, percent) }

func Phase(name string) Attr { return slog.String(FieldPhase, name) }

// Lane names the actor for a lane slot.
func Lane(slot int) Attr { return slog.String(FieldLane, fulfillment.SlotName(slot)) }

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component name. A nil logger
// discards.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// ErrorWithContext logs at error level, filling in event_type and a generic
// error_hint when attrs carry neither.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	var hasEvent, hasHint bool
	for _, a := range attrs {
		hasEvent = hasEvent || a.Key == FieldEventType
		hasHint = hasHint || a.Key == FieldErrorHint
	}
	if !hasEvent {
		attrs = append(attrs, Event(eventType))
	}
	if !hasHint {
		attrs = append(attrs, Hint("check logs for details"))
	}
	logger.Error(msg, attrsToArgs(attrs)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
