package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DMarby/picsum-editor/internal/handler"
	"github.com/DMarby/picsum-editor/internal/logger"
	"go.uber.org/zap"
)

func TestRecovery(t *testing.T) {
	log := logger.New(zap.FatalLevel)
	defer log.Sync()

	ts := httptest.NewServer(handler.AddRequestID(handler.Recovery(log, http.HandlerFunc(panicHandler))))
	defer ts.Close()

	tests := []struct {
		Name        string
		Accept      string
		ContentType string
	}{
		{"plain text", "", "text/plain; charset=utf-8"},
		{"json", "application/json", "application/json"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			req, err := http.NewRequest("GET", ts.URL, nil)
			if err != nil {
				t.Fatal(err)
			}

			if test.Accept != "" {
				req.Header.Set("Accept", test.Accept)
			}

			res, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer res.Body.Close()

			if res.StatusCode != http.StatusInternalServerError {
				t.Errorf("wrong status code %#v", res.StatusCode)
			}

			if contentType := res.Header.Get("Content-Type"); contentType != test.ContentType {
				t.Errorf("wrong content type %s", contentType)
			}

			if res.Header.Get(handler.RequestIDHeader) == "" {
				t.Error("missing request id")
			}

			if test.Accept == "application/json" {
				var body struct {
					Error string `json:"error"`
				}
				if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
					t.Fatal(err)
				}

				if body.Error == "" {
					t.Error("missing error message")
				}
			}
		})
	}
}

func panicHandler(rw http.ResponseWriter, req *http.Request) {
	panic("panicking handler")
}
