package handler

import (
	"net/http"
	"runtime/debug"

	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/tracing"
)

// Recovery is a handler that turns panics into internal server errors
func Recovery(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				traceID, spanID := tracing.TraceInfo(r.Context())
				log.Errorw("panic handling request", LogFields(r,
					"http-method", r.Method,
					"uri", r.URL.String(),
					"panic", err,
					"trace-id", traceID,
					"span-id", spanID,
					"stacktrace", string(debug.Stack()),
				)...)

				Handler(func(w http.ResponseWriter, r *http.Request) *Error {
					return InternalServerError()
				}).ServeHTTP(w, r)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
