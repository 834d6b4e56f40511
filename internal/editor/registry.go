package editor

import (
	"context"
	"errors"
	"expvar"
	"sync"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/format"
	"github.com/google/uuid"
)

var (
	activeSessions = expvar.NewInt("gauge_editor_sessions")
	openedSessions = expvar.NewInt("counter_editor_opened_sessions")
)

// ErrNotFound is returned for unknown session ids
var ErrNotFound = errors.New("session not found")

// Registry owns the active sessions
type Registry struct {
	deps     Deps
	mutex    sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry creating sessions with the given deps
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for an upload under a new id
func (r *Registry) Create(ctx context.Context, upload Upload) (*Session, error) {
	return r.Replace(ctx, uuid.NewString(), upload)
}

// Replace opens a session for an upload under id, disposing any session it replaces.
// The existing session is kept when the upload is refused.
func (r *Registry) Replace(ctx context.Context, id string, upload Upload) (*Session, error) {
	s, err := Open(ctx, id, r.deps, upload)
	if err != nil {
		return nil, err
	}

	r.mutex.Lock()
	previous := r.sessions[id]
	r.sessions[id] = s
	r.mutex.Unlock()

	if previous != nil {
		previous.Dispose(ctx)
	} else {
		activeSessions.Add(1)
	}

	openedSessions.Add(1)
	return s, nil
}

// Get returns the session with the given id
func (r *Registry) Get(id string) (*Session, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	return s, nil
}

// Dispose removes and disposes the session with the given id
func (r *Registry) Dispose(ctx context.Context, id string) error {
	r.mutex.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mutex.Unlock()

	if !ok {
		return ErrNotFound
	}

	activeSessions.Add(-1)
	s.Dispose(ctx)
	return nil
}

// Len returns the number of active sessions
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.sessions)
}

// Shutdown disposes every session
func (r *Registry) Shutdown(ctx context.Context) {
	r.mutex.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mutex.Unlock()

	for _, s := range sessions {
		activeSessions.Add(-1)
		s.Dispose(ctx)
	}
}

// StoredUpload loads an image from storage as if it had been uploaded
func StoredUpload(ctx context.Context, blobs *blob.Store, id string) (Upload, error) {
	data, err := blobs.Get(ctx, blob.StorageScheme+id)
	if err != nil {
		return Upload{}, err
	}

	mime, err := format.Sniff(data)
	if err != nil {
		return Upload{}, err
	}

	return Upload{
		Name: id,
		MIME: mime,
		Data: data,
	}, nil
}
