package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouteMatcher names the route a request is for, for use as a metrics and tracing label
type RouteMatcher interface {
	Match(r *http.Request) string
}

// Route labels for requests that match no route
const (
	RouteNotFound         = "not_found"
	RouteMethodNotAllowed = "method_not_allowed"
)

// MuxRouteMatcher matches routes of a mux router
type MuxRouteMatcher struct {
	Router *mux.Router
}

// Match returns the mux route name of a request, falling back to its path template.
// Path variables such as session ids stay templated so labels do not grow with every session.
func (m *MuxRouteMatcher) Match(r *http.Request) string {
	var routeMatch mux.RouteMatch
	if !m.Router.Match(r, &routeMatch) {
		if routeMatch.MatchErr == mux.ErrMethodMismatch {
			return RouteMethodNotAllowed
		}
		return RouteNotFound
	}

	// The Route is nil when the NotFoundHandler matched
	if routeMatch.Route == nil {
		return RouteNotFound
	}

	if name := routeMatch.Route.GetName(); name != "" {
		return name
	}

	if tmpl, err := routeMatch.Route.GetPathTemplate(); err == nil {
		return tmpl
	}

	return RouteNotFound
}
