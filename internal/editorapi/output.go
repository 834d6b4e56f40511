package editorapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/download"
	"github.com/DMarby/picsum-editor/internal/format"
	"github.com/DMarby/picsum-editor/internal/handler"
	"github.com/DMarby/picsum-editor/internal/params"
	"github.com/gorilla/mux"
)

func (a *API) previewHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	s, handlerErr := a.session(r)
	if handlerErr != nil {
		return handlerErr
	}

	img, err := s.Preview(r.Context())
	if err != nil {
		return a.sessionError(r, err)
	}

	var buf bytes.Buffer
	if err := format.Encode(&buf, img, format.Settings[0]); err != nil {
		a.logError(r, "error encoding preview", err)
		return handler.InternalServerError()
	}

	w.Header().Set("Content-Type", format.Settings[0].MIME)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(buf.Bytes())

	return nil
}

func (a *API) exportHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	s, handlerErr := a.session(r)
	if handlerErr != nil {
		return handlerErr
	}

	if err := s.Export(r.Context(), &download.HTTP{Writer: w}); err != nil {
		return a.sessionError(r, err)
	}

	return nil
}

func (a *API) blobHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	valid, err := params.Verify(a.HMAC, r)
	if err != nil {
		a.logError(r, "error validating hmac", err)
		return handler.InternalServerError()
	}

	if !valid {
		return handler.BadRequest("invalid parameters")
	}

	data, err := a.Blobs.Get(r.Context(), blob.FromKey(mux.Vars(r)["key"]))
	if err != nil {
		return a.sessionError(r, err)
	}

	mime, err := format.Sniff(data)
	if err != nil {
		mime = "application/octet-stream"
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)

	return nil
}
