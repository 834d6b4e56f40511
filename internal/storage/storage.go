package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// Provider is an interface for retrieving source images
type Provider interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

// DefaultExtension is appended to image ids without an extension
const DefaultExtension = ".jpg"

// ObjectName returns the name of the object holding an image id.
// Path elements are stripped so an id can not escape the storage root.
func ObjectName(id string) string {
	name := path.Base(strings.ReplaceAll(id, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}

	if path.Ext(name) == "" {
		name += DefaultExtension
	}

	return name
}

// Errors
var (
	ErrNotFound = errors.New("Image does not exist")
)
