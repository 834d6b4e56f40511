package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/DMarby/picsum-editor/internal/cache"
	"github.com/DMarby/picsum-editor/internal/storage"
	"github.com/DMarby/picsum-editor/internal/tracing"
	"github.com/twmb/murmur3"
)

// URL prefixes
const (
	Scheme        = "blob:"
	StorageScheme = "storage:"
)

// Errors
var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidURL = errors.New("invalid blob url")
)

// Store holds encoded images under opaque urls
// Urls with the storage scheme are loaded from the storage provider on first use
type Store struct {
	tracer  *tracing.Tracer
	cache   *cache.Auto
	counter atomic.Uint64
}

// New returns a new Store backed by the given cache and storage providers
func New(tracer *tracing.Tracer, provider cache.Provider, storageProvider storage.Provider) *Store {
	s := &Store{
		tracer: tracer,
	}

	s.cache = &cache.Auto{
		Tracer:   tracer,
		Provider: provider,
		Loader:   loader(storageProvider),
	}

	return s
}

func loader(storageProvider storage.Provider) cache.LoaderFunc {
	return func(ctx context.Context, key string) ([]byte, error) {
		id, ok := strings.CutPrefix(key, StorageScheme)
		if !ok || storageProvider == nil {
			return nil, ErrNotFound
		}

		data, err := storageProvider.Get(ctx, id)
		if err == storage.ErrNotFound {
			return nil, ErrNotFound
		}

		return data, err
	}
}

// Create stores the data and returns a new url for it
// Every call returns a distinct url, even for identical data
func (s *Store) Create(ctx context.Context, data []byte) (string, error) {
	ctx, span := s.tracer.Start(ctx, "blob.Create")
	defer span.End()

	seed := s.counter.Add(1)
	url := fmt.Sprintf("%s%016x%x", Scheme, murmur3.SeedSum64(seed, data), seed)

	if err := s.cache.Provider.Set(ctx, url, data); err != nil {
		return "", tracing.Fail(span, fmt.Errorf("error storing blob: %w", err))
	}

	return url, nil
}

// Get returns the data for a url
func (s *Store) Get(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, Scheme) && !strings.HasPrefix(url, StorageScheme) {
		return nil, ErrInvalidURL
	}

	ctx, span := s.tracer.Start(ctx, "blob.Get")
	defer span.End()

	data, err := s.cache.Get(ctx, url)
	if err == cache.ErrNotFound {
		return nil, ErrNotFound
	}

	return data, tracing.Fail(span, err)
}

// Load implements cropper.Loader
func (s *Store) Load(ctx context.Context, url string) ([]byte, error) {
	return s.Get(ctx, url)
}

// Revoke removes the data for a url
// Storage urls are left in place, as they can be loaded again
func (s *Store) Revoke(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, Scheme) {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "blob.Revoke")
	defer span.End()

	return tracing.Fail(span, s.cache.Provider.Delete(ctx, url))
}

// Key returns the url path segment for a blob url
func Key(url string) string {
	return strings.TrimPrefix(url, Scheme)
}

// FromKey returns the blob url for a path segment
func FromKey(key string) string {
	return Scheme + key
}
