package download_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DMarby/picsum-editor/internal/download"
)

func TestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	d := &download.File{Dir: dir}

	if err := d.Download(context.Background(), "../photo.png", "image/png", []byte("data")); err != nil {
		t.Fatal(err)
	}

	if d.Path != filepath.Join(dir, "photo.png") {
		t.Errorf("wrong path %s", d.Path)
	}

	buf, err := os.ReadFile(d.Path)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(buf, []byte("data")) {
		t.Error("wrong data")
	}
}

func TestHTTP(t *testing.T) {
	w := httptest.NewRecorder()
	d := &download.HTTP{Writer: w}

	if err := d.Download(context.Background(), "photo.jpg", "image/jpeg", []byte("data")); err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"Content-Type":        "image/jpeg",
		"Content-Length":      "4",
		"Content-Disposition": "attachment; filename=photo.jpg",
	}

	for header, expected := range tests {
		if value := w.Header().Get(header); value != expected {
			t.Errorf("wrong %s header %s", header, value)
		}
	}

	if w.Body.String() != "data" {
		t.Errorf("wrong body %s", w.Body.String())
	}
}
