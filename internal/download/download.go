package download

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// File writes downloads into a directory
type File struct {
	Dir string

	// Path is the location of the last written file
	Path string
}

// Download writes data to filename within the directory
func (f *File) Download(ctx context.Context, filename, mimeType string, data []byte) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(f.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}

	f.Path = path
	return nil
}

// HTTP sends downloads as attachments on a response
type HTTP struct {
	Writer http.ResponseWriter
}

// Download writes data as an attachment named filename
func (h *HTTP) Download(ctx context.Context, filename, mimeType string, data []byte) error {
	header := h.Writer.Header()
	header.Set("Content-Type", mimeType)
	header.Set("Content-Length", strconv.Itoa(len(data)))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	header.Set("Cache-Control", "no-store")

	_, err := h.Writer.Write(data)
	return err
}
