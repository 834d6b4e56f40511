package handler

import (
	"net/http"
	"time"

	"github.com/rs/cors"
)

var corsMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
}

// CORS is a handler for setting CORS headers.
// Browser editors read the session location and request id from responses.
func CORS(exposedHeaders []string, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       corsMethods,
		AllowedHeaders:       []string{"*"},
		ExposedHeaders:       append([]string{"Location", "Content-Disposition"}, exposedHeaders...),
		MaxAge:               int((time.Hour * 24) / time.Second),
		OptionsSuccessStatus: http.StatusNoContent,
	}).Handler(next)
}
