package editorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"net/http"

	"github.com/DMarby/picsum-editor/internal/editor"
	"github.com/DMarby/picsum-editor/internal/handler"
	"github.com/DMarby/picsum-editor/internal/paint"
	"github.com/DMarby/picsum-editor/internal/params"
	"github.com/gorilla/mux"
)

// Strokes is a list of strokes, each a list of points in page coordinates
type Strokes [][]paint.Point

func (a *API) enterPaintHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.EnterPaintMode()
	})
}

func (a *API) exitPaintHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.ExitPaintMode()
	})
}

func (a *API) toolHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	tool, err := paint.ParseTool(mux.Vars(r)["tool"])
	if err != nil {
		return handler.BadRequest(err.Error())
	}

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.SetTool(tool)
	})
}

func (a *API) brushHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	var col color.Color
	if value, ok := params.String(r, "color"); ok {
		c, err := params.Color(value)
		if err != nil {
			return handler.BadRequest(err.Error())
		}
		col = c
	}

	var size float64
	if _, ok := params.String(r, "size"); ok {
		var err error
		if size, err = params.Float(r, "size"); err != nil {
			return handler.BadRequest(err.Error())
		}
	}

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.SetBrush(col, size)
	})
}

func (a *API) strokesHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	var strokes Strokes
	if err := json.NewDecoder(r.Body).Decode(&strokes); err != nil {
		return handler.BadRequest(fmt.Sprintf("invalid strokes: %s", err))
	}

	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		for _, stroke := range strokes {
			if err := s.Stroke(stroke); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *API) applyPaintHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return a.mutate(w, r, func(ctx context.Context, s *editor.Session) error {
		return s.ApplyPaintingCanvas(ctx)
	})
}
