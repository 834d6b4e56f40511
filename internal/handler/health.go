package handler

import (
	"encoding/json"
	"net/http"

	"github.com/DMarby/picsum-editor/internal/health"
)

// Health is a handler for health check status, unhealthy checks respond with a 503
func Health(healthChecker *health.Checker) Handler {
	return func(w http.ResponseWriter, r *http.Request) *Error {
		status := healthChecker.Status()

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Content-Type", "application/json")

		if status.Healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(status); err != nil {
			return InternalServerError()
		}

		return nil
	}
}
