package handler

import (
	"fmt"
	"net/http"

	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
)

// Logger is a handler that logs completed requests.
// Server errors are logged as errors, conflicts with a busy session as info, the rest as debug.
func Logger(log *logger.Logger, h http.Handler, routeMatcher RouteMatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respMetrics := httpsnoop.CaptureMetricsFn(w, func(ww http.ResponseWriter) {
			h.ServeHTTP(ww, r)
		})

		logFields := LogFields(r,
			"http-method", r.Method,
			"route", routeMatcher.Match(r),
			"remote-addr", r.RemoteAddr,
			"user-agent", r.UserAgent(),
			"uri", r.URL.String(),
			"status-code", respMetrics.Code,
			"response-size", respMetrics.Written,
			"elapsed", fmt.Sprintf("%.9fs", respMetrics.Duration.Seconds()),
		)

		switch {
		case respMetrics.Code >= 500:
			log.Errorw("Request completed", logFields...)
		case respMetrics.Code == http.StatusConflict:
			log.Infow("Request completed", logFields...)
		default:
			log.Debugw("Request completed", logFields...)
		}
	})
}

// LogFields prefixes keysAndValues with the request id, and the session id when the route has one
func LogFields(r *http.Request, keysAndValues ...interface{}) []interface{} {
	fields := []interface{}{"request-id", GetReqID(r.Context())}

	if id, ok := mux.Vars(r)["session"]; ok {
		fields = append(fields, "session-id", id)
	}

	return append(fields, keysAndValues...)
}
