package editorapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/editor"
	"github.com/DMarby/picsum-editor/internal/filter"
	"github.com/DMarby/picsum-editor/internal/format"
	"github.com/DMarby/picsum-editor/internal/handler"
	"github.com/DMarby/picsum-editor/internal/health"
	"github.com/DMarby/picsum-editor/internal/hmac"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/paint"
	"github.com/DMarby/picsum-editor/internal/params"
	"github.com/DMarby/picsum-editor/internal/tracing"
	"github.com/gorilla/mux"
)

// API is a http api
type API struct {
	Registry       *editor.Registry
	Blobs          *blob.Store
	HealthChecker  *health.Checker
	Log            *logger.Logger
	Tracer         *tracing.Tracer
	HandlerTimeout time.Duration
	HMAC           *hmac.HMAC
	MaxUploadSize  int64
}

// Utility methods for logging
func (a *API) logError(r *http.Request, message string, err error) {
	a.Log.Errorw(message, handler.LogFields(r, "error", err)...)
}

// Router returns a http router
func (a *API) Router() http.Handler {
	router := mux.NewRouter()

	router.NotFoundHandler = handler.Handler(a.notFoundHandler)

	// Redirect trailing slashes
	router.StrictSlash(true)

	// Healthcheck
	router.Handle("/health", handler.Health(a.HealthChecker)).Methods("GET")

	// Sessions
	router.Handle("/sessions", handler.Handler(a.createHandler)).Methods("POST")

	// Query parameters:
	// ?source={id} - Open an image from storage instead of an upload
	// ?name={name} - Filename of a raw upload

	s := router.PathPrefix("/sessions/{session}").Subrouter()
	s.Handle("", handler.Handler(a.statusHandler)).Methods("GET")
	s.Handle("", handler.Handler(a.replaceHandler)).Methods("PUT")
	s.Handle("", handler.Handler(a.disposeHandler)).Methods("DELETE")

	// Query parameters:
	// ?wait - Wait for the session to be idle before responding

	// Filters
	s.Handle("/filters/{filter}", handler.Handler(a.setFilterHandler)).Methods("PUT")
	s.Handle("/filters", handler.Handler(a.resetFiltersHandler)).Methods("DELETE")

	// Crop widget
	s.Handle("/crop", handler.Handler(a.setCropHandler)).Methods("PUT")
	s.Handle("/crop", handler.Handler(a.clearCropHandler)).Methods("DELETE")
	s.Handle("/dragmode/{mode:crop|move|none}", handler.Handler(a.dragModeHandler)).Methods("PUT")
	s.Handle("/zoom", handler.Handler(a.zoomHandler)).Methods("POST")
	s.Handle("/rotate", handler.Handler(a.rotateHandler)).Methods("POST")
	s.Handle("/reflect/{axis:horizontal|vertical}", handler.Handler(a.reflectHandler)).Methods("POST")

	// Query parameters:
	// ?delta={delta} - Relative zoom, negative values zoom out
	// ?degrees={degrees} - Rotation, clockwise
	// ?absolute - Rotate to the given angle instead of by it

	// Commits
	s.Handle("/apply", handler.Handler(a.applyHandler)).Methods("POST")
	s.Handle("/undo", handler.Handler(a.undoHandler)).Methods("POST")

	// Query parameters:
	// ?filters=false - Commit without baking the pending filters

	// Paint mode
	s.Handle("/paint", handler.Handler(a.enterPaintHandler)).Methods("POST")
	s.Handle("/paint", handler.Handler(a.exitPaintHandler)).Methods("DELETE")
	s.Handle("/paint/tool/{tool}", handler.Handler(a.toolHandler)).Methods("PUT")
	s.Handle("/paint/brush", handler.Handler(a.brushHandler)).Methods("PUT")
	s.Handle("/paint/strokes", handler.Handler(a.strokesHandler)).Methods("POST")
	s.Handle("/paint/apply", handler.Handler(a.applyPaintHandler)).Methods("POST")

	// Query parameters:
	// ?color={#rrggbb} - Brush color
	// ?size={radius} - Brush radius

	// Output
	s.Handle("/format/cycle", handler.Handler(a.cycleFormatHandler)).Methods("POST")
	s.Handle("/preview", handler.Handler(a.previewHandler)).Methods("GET")
	s.Handle("/export", handler.Handler(a.exportHandler)).Methods("GET")

	// Blobs
	router.Handle("/blobs/{key}", handler.Handler(a.blobHandler)).Methods("GET")

	// ?hmac - HMAC signature of the path

	routeMatcher := &handler.MuxRouteMatcher{Router: router}

	// Set up handlers for adding a request id, handling panics, tracing, metrics, request logging, setting CORS headers, and handler execution timeout
	return handler.AddRequestID(
		handler.Recovery(a.Log,
			handler.Tracer(a.Tracer,
				handler.Metrics(
					handler.Logger(a.Log,
						handler.CORS([]string{handler.RequestIDHeader}, http.TimeoutHandler(router, a.HandlerTimeout, "Something went wrong. Timed out.")),
						routeMatcher,
					),
					routeMatcher,
				),
				routeMatcher,
			),
		),
	)
}

// Handle not found errors
var notFoundError = &handler.Error{
	Message: "page not found",
	Code:    http.StatusNotFound,
}

func (a *API) notFoundHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return notFoundError
}

// session returns the session named in the path
func (a *API) session(r *http.Request) (*editor.Session, *handler.Error) {
	s, err := a.Registry.Get(mux.Vars(r)["session"])
	if err != nil {
		return nil, handler.NotFound(err.Error())
	}

	return s, nil
}

// sessionError maps session errors to responses
func (a *API) sessionError(r *http.Request, err error) *handler.Error {
	switch {
	case errors.Is(err, editor.ErrNotFound), errors.Is(err, editor.ErrDisposed), errors.Is(err, blob.ErrNotFound):
		return handler.NotFound(err.Error())
	case errors.Is(err, editor.ErrBusy),
		errors.Is(err, editor.ErrPaintMode),
		errors.Is(err, editor.ErrNotPainting),
		errors.Is(err, paint.ErrIdle),
		errors.Is(err, paint.ErrPainting),
		errors.Is(err, cropper.ErrNotReady),
		errors.Is(err, cropper.ErrDisabled):
		return handler.Conflict(err.Error())
	case errors.Is(err, filter.ErrUnknownFilter),
		errors.Is(err, paint.ErrUnknownTool),
		errors.Is(err, cropper.ErrInvalidSize),
		errors.Is(err, params.ErrMissingParam),
		errors.Is(err, params.ErrInvalidNumber),
		errors.Is(err, params.ErrInvalidColor),
		errors.Is(err, format.ErrUnknownImage):
		return handler.BadRequest(err.Error())
	}

	a.logError(r, "error handling session request", err)
	return handler.InternalServerError()
}
