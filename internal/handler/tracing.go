package handler

import (
	"net/http"

	"github.com/DMarby/picsum-editor/internal/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is a handler that starts a span per request, named after the method and route,
// and tags it with the request id
func Tracer(tracer *tracing.Tracer, h http.Handler, routeMatcher RouteMatcher) http.Handler {
	tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetReqID(r.Context()); id != "" {
			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("http.request_id", id))
		}

		h.ServeHTTP(w, r)
	})

	return otelhttp.NewHandler(
		tagged,
		"http",
		otelhttp.WithTracerProvider(tracer),
		otelhttp.WithPropagators(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return r.Method + " " + routeMatcher.Match(r)
		}),
	)
}
