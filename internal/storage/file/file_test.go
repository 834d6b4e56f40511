package file_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"

	"github.com/DMarby/picsum-editor/internal/storage"
	"github.com/DMarby/picsum-editor/internal/storage/file"

	"testing"
)

func TestFile(t *testing.T) {
	dir := t.TempDir()
	fixture := []byte("image data")

	if err := os.WriteFile(filepath.Join(dir, "1.jpg"), fixture, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "2.png"), fixture, 0o644); err != nil {
		t.Fatal(err)
	}

	provider, err := file.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		Name string
		ID   string
	}{
		{"Get an image by id", "1"},
		{"Get an image by id with an extension", "2.png"},
		{"Path elements are stripped", "../../1"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			buf, err := provider.Get(context.Background(), test.ID)
			if err != nil {
				t.Fatal(err)
			}

			if !reflect.DeepEqual(buf, fixture) {
				t.Error("image data doesn't match")
			}
		})
	}

	t.Run("Returns error on a nonexistent path", func(t *testing.T) {
		_, err := file.New("")
		if err == nil {
			t.FailNow()
		}
	})

	t.Run("Returns error when the path is a file", func(t *testing.T) {
		_, err := file.New(filepath.Join(dir, "1.jpg"))
		if err == nil {
			t.FailNow()
		}
	})

	t.Run("Returns error on a nonexistent image", func(t *testing.T) {
		_, err := provider.Get(context.Background(), "nonexistent")
		if err != storage.ErrNotFound {
			t.Fatalf("wrong error %v", err)
		}
	})

	t.Run("Returns error on an empty id", func(t *testing.T) {
		_, err := provider.Get(context.Background(), "")
		if err != storage.ErrNotFound {
			t.Fatalf("wrong error %v", err)
		}
	})
}
