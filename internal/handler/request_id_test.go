package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DMarby/picsum-editor/internal/handler"
	"github.com/google/uuid"
)

func TestAddRequestID(t *testing.T) {
	var seen string
	h := handler.AddRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handler.GetReqID(r.Context())
	}))

	t.Run("generates a request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		if _, err := uuid.Parse(seen); err != nil {
			t.Fatalf("invalid request id %q", seen)
		}

		if w.Header().Get(handler.RequestIDHeader) != seen {
			t.Error("response header does not match the request id")
		}
	})

	t.Run("keeps a valid incoming request id", func(t *testing.T) {
		id := uuid.NewString()
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set(handler.RequestIDHeader, id)

		h.ServeHTTP(httptest.NewRecorder(), r)

		if seen != id {
			t.Errorf("wrong request id %q", seen)
		}
	})

	t.Run("replaces an invalid incoming request id", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set(handler.RequestIDHeader, "<script>")

		h.ServeHTTP(httptest.NewRecorder(), r)

		if seen == "<script>" || seen == "" {
			t.Errorf("wrong request id %q", seen)
		}
	})

	if handler.GetReqID(httptest.NewRequest("GET", "/", nil).Context()) != "" {
		t.Error("context without a request id should return an empty string")
	}
}
