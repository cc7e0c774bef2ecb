package api

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ocn-ai/weave/pkg/logging"
)

// TraceMiddleware binds a correlation key to every request before any
// handler logic runs. If the client sends an X-Trace-Id it is reused,
// otherwise a fresh id is minted; either way the id is echoed on the
// response and rides the request context into every log record. Handlers
// that learn a better key (the event's own trace id during ingestion)
// re-bind deeper in the call chain.
func TraceMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("ocn.weave/api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		w.Header().Set("X-Trace-Id", traceID)

		ctx, span := tracer.Start(r.Context(), "weave.http",
			// method+path only: the raw URL may carry anything
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
			))
		defer span.End()

		ctx = logging.WithTrace(ctx, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
