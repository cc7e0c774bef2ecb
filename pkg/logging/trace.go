package logging

import "context"

type traceIDKey struct{}

// NoTrace is the sentinel written to log records emitted outside any trace scope.
const NoTrace = "-"

// WithTrace returns a child context bound to the given trace id. The binding
// lives exactly as long as the derived context: callers that pass the parent
// context onward are back on the prior trace id (or none), error path
// included, with no cleanup step. Because the id rides the context rather
// than a package global, concurrent requests can never observe each other's
// trace ids.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID extracts the bound trace id from the context, or "" when none is active.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}
