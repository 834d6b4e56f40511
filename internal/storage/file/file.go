package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DMarby/picsum-editor/internal/storage"
)

// Provider loads source images from a directory
type Provider struct {
	path string
}

// New returns a new Provider reading from the directory at path
func New(path string) (*Provider, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	return &Provider{
		path: path,
	}, nil
}

// Get returns the image data for an image id
func (p *Provider) Get(ctx context.Context, id string) ([]byte, error) {
	name := storage.ObjectName(id)
	if name == "" {
		return nil, storage.ErrNotFound
	}

	data, err := os.ReadFile(filepath.Join(p.path, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}

	return data, err
}
