package editorapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/editor"
	"github.com/DMarby/picsum-editor/internal/filter"
	"github.com/DMarby/picsum-editor/internal/handler"
	"github.com/DMarby/picsum-editor/internal/params"
	"github.com/gorilla/mux"
)

const defaultMaxUploadSize = 64 << 20

// Status is the session status returned by the api
type Status struct {
	editor.Status
	BlobURL string `json:"blobUrl,omitempty"`
}

func (a *API) createHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	upload, handlerErr := a.upload(w, r)
	if handlerErr != nil {
		return handlerErr
	}

	s, err := a.Registry.Create(r.Context(), upload)
	if err != nil {
		return a.openError(w, r, err)
	}

	w.Header().Set("Location", "/sessions/"+s.ID)
	return a.writeStatus(w, r, s, http.StatusCreated)
}

func (a *API) replaceHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	if _, handlerErr := a.session(r); handlerErr != nil {
		return handlerErr
	}

	upload, handlerErr := a.upload(w, r)
	if handlerErr != nil {
		return handlerErr
	}

	s, err := a.Registry.Replace(r.Context(), mux.Vars(r)["session"], upload)
	if err != nil {
		return a.openError(w, r, err)
	}

	return a.writeStatus(w, r, s, http.StatusOK)
}

// openError ignores uploads that are not images
func (a *API) openError(w http.ResponseWriter, r *http.Request, err error) *handler.Error {
	if errors.Is(err, editor.ErrNotImage) {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	return a.sessionError(r, err)
}

// upload reads an image from a multipart form, a raw body, or from storage
func (a *API) upload(w http.ResponseWriter, r *http.Request) (editor.Upload, *handler.Error) {
	if source, ok := params.String(r, "source"); ok {
		upload, err := editor.StoredUpload(r.Context(), a.Blobs, source)
		if err != nil {
			return editor.Upload{}, a.sessionError(r, err)
		}
		return upload, nil
	}

	maxSize := a.MaxUploadSize
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return editor.Upload{}, handler.BadRequest(fmt.Sprintf("invalid upload: %s", err))
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return editor.Upload{}, handler.BadRequest(fmt.Sprintf("invalid upload: %s", err))
		}

		return editor.Upload{
			Name: header.Filename,
			MIME: header.Header.Get("Content-Type"),
			Data: data,
		}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return editor.Upload{}, handler.BadRequest(fmt.Sprintf("invalid upload: %s", err))
	}

	name, _ := params.String(r, "name")
	return editor.Upload{
		Name: name,
		MIME: mediaType,
		Data: data,
	}, nil
}

func (a *API) statusHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	s, handlerErr := a.session(r)
	if handlerErr != nil {
		return handlerErr
	}

	if params.Bool(r, "wait", false) {
		if err := s.Wait(r.Context()); err != nil {
			return a.sessionError(r, err)
		}
	}

	return a.writeStatus(w, r, s, http.StatusOK)
}

func (a *API) disposeHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	if err := a.Registry.Dispose(r.Context(), mux.Vars(r)["session"]); err != nil {
		return a.sessionError(r, err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// writeStatus responds with the session status and a signed url for the image shown by the cropper
func (a *API) writeStatus(w http.ResponseWriter, r *http.Request, s *editor.Session, code int) *handler.Error {
	status := Status{
		Status: s.Status(),
	}

	if strings.HasPrefix(status.URL, blob.Scheme) {
		blobURL, err := params.Sign(a.HMAC, "/blobs/"+blob.Key(status.URL), url.Values{})
		if err != nil {
			a.logError(r, "error creating hmac", err)
			return handler.InternalServerError()
		}
		status.BlobURL = blobURL
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		a.logError(r, "error encoding session status", err)
	}

	return nil
}

// mutate runs f against the session named in the path and responds with the new status
func (a *API) mutate(w http.ResponseWriter, r *http.Request, f func(ctx context.Context, s *editor.Session) error) *handler.Error {
	s, handlerErr := a.session(r)
	if handlerErr != nil {
		return handlerErr
	}

	if err := f(r.Context(), s); err != nil {
		return a.sessionError(r, err)
	}

	return a.writeStatus(w, r, s, http.StatusOK)
}

func (a *API) setFilterHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	value, err := params.Float(r, "value")
	if err != nil {
		return handler.BadRequest(err.Error())
	}

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.SetFilter(filter.Name(mux.Vars(r)["filter"]), value)
	})
}

func (a *API) resetFiltersHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.ResetFilters()
	})
}

func (a *API) setCropHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	var box cropper.Box
	if err := json.NewDecoder(r.Body).Decode(&box); err != nil {
		return handler.BadRequest(fmt.Sprintf("invalid crop box: %s", err))
	}

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.SetCrop(box)
	})
}

func (a *API) clearCropHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.ClearCrop()
	})
}

func (a *API) dragModeHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.SetDragMode(cropper.DragMode(mux.Vars(r)["mode"]))
	})
}

func (a *API) zoomHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	delta, err := params.Float(r, "delta")
	if err != nil {
		return handler.BadRequest(err.Error())
	}

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.Zoom(delta)
	})
}

func (a *API) rotateHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	degrees, err := params.Float(r, "degrees")
	if err != nil {
		return handler.BadRequest(err.Error())
	}

	absolute := params.Bool(r, "absolute", false)

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		if absolute {
			return s.RotateTo(ctx, degrees)
		}
		return s.Rotate(ctx, degrees)
	})
}

func (a *API) reflectHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.Reflect(ctx, editor.Axis(mux.Vars(r)["axis"]))
	})
}

func (a *API) applyHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	bakeFilters := params.Bool(r, "filters", true)

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.ApplyChange(ctx, bakeFilters)
	})
}

func (a *API) undoHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.UndoChange(ctx)
	})
}

func (a *API) cycleFormatHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		_, err := s.CycleFormat()
		return err
	})
}
