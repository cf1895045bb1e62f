package services

import "context"

type contextKey string

const (
	kindKey      contextKey = "kind"
	txIDKey      contextKey = "tx_id"
	phaseKey     contextKey = "phase"
	laneKey      contextKey = "lane"
	sessionIDKey contextKey = "session_id"
	requestIDKey contextKey = "request_id"
)

// WithTransaction annotates context with the transaction kind and identifier.
func WithTransaction(ctx context.Context, kind string, id int64) context.Context {
	if kind != "" {
		ctx = context.WithValue(ctx, kindKey, kind)
	}
	return context.WithValue(ctx, txIDKey, id)
}

// TransactionFromContext extracts the transaction kind and identifier if
// present.
func TransactionFromContext(ctx context.Context) (string, int64, bool) {
	id, ok := ctx.Value(txIDKey).(int64)
	if !ok {
		return "", 0, false
	}
	kind, _ := ctx.Value(kindKey).(string)
	return kind, id, true
}

// WithPhase annotates context with the phase name.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(phaseKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithLane annotates context with the lane actor (client/runtime/chain).
func WithLane(ctx context.Context, lane string) context.Context {
	if lane == "" {
		return ctx
	}
	return context.WithValue(ctx, laneKey, lane)
}

// LaneFromContext returns the lane actor if present.
func LaneFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(laneKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithSessionID annotates context with the tracker session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the tracker session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
