package handler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/DMarby/picsum-editor/internal/handler"
)

func TestHandler(t *testing.T) {
	tests := []struct {
		Name                string
		AcceptHeader        string
		ExpectedContentType string
		ExpectedStatus      int
		ExpectedResponse    []byte
		Handler             handler.Handler
	}{
		{"internal server error", "text/html", "text/plain; charset=utf-8", http.StatusInternalServerError, []byte("Something went wrong\n"), errorHandler},
		{"internal server error json", "application/json", "application/json", http.StatusInternalServerError, []byte("{\"error\":\"Something went wrong\"}\n"), errorHandler},
		{"bad request", "text/html", "text/plain; charset=utf-8", http.StatusBadRequest, []byte("Bad request test\n"), badRequestHandler},
		{"bad request json", "application/json", "application/json", http.StatusBadRequest, []byte("{\"error\":\"Bad request test\"}\n"), badRequestHandler},
		{"conflict", "text/html", "text/plain; charset=utf-8", http.StatusConflict, []byte("Conflict test\n"), conflictHandler},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			ts := httptest.NewServer(handler.Handler(test.Handler))
			defer ts.Close()

			req, err := http.NewRequest("GET", ts.URL, nil)
			if err != nil {
				t.Fatal(err)
			}

			req.Header.Set("Accept", test.AcceptHeader)

			res, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer res.Body.Close()

			if res.StatusCode != test.ExpectedStatus {
				t.Fatalf("wrong response code, %#v", res.StatusCode)
			}

			if contentType := res.Header.Get("Content-Type"); contentType != test.ExpectedContentType {
				t.Fatalf("wrong content type, %#v", contentType)
			}

			body, err := io.ReadAll(res.Body)
			if err != nil {
				t.Fatal(err)
			}

			if !reflect.DeepEqual(body, test.ExpectedResponse) {
				t.Errorf("wrong response %s", body)
			}
		})
	}
}

func errorHandler(rw http.ResponseWriter, req *http.Request) *handler.Error {
	return handler.InternalServerError()
}

func badRequestHandler(rw http.ResponseWriter, req *http.Request) *handler.Error {
	return handler.BadRequest("Bad request test")
}

func conflictHandler(rw http.ResponseWriter, req *http.Request) *handler.Error {
	return handler.Conflict("Conflict test")
}
