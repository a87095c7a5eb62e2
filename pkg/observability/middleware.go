package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Middleware records a span and request metrics per HTTP request. The
// ResponseWriter is never wrapped; wrapping would hide http.Flusher
// from the SSE handlers.
func Middleware(metrics Metrics, tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := r.Context()
			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, SpanHTTPRequest,
					trace.WithAttributes(
						attribute.String(AttrHTTPMethod, r.Method),
						attribute.String(AttrHTTPRoute, r.URL.Path),
					),
				)
				defer span.End()
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			if span != nil {
				span.SetAttributes(attribute.String(AttrHTTPRoute, route))
			}
			if metrics != nil {
				metrics.RecordHTTPRequest(r.Context(), r.Method, route, time.Since(start))
			}
		})
	}
}
