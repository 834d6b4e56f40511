package editor

import (
	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/filter"
	"github.com/DMarby/picsum-editor/internal/format"
)

// Status is a snapshot of a session
type Status struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Busy          bool               `json:"busy"`
	Error         string             `json:"error,omitempty"`
	PaintMode     bool               `json:"paintMode"`
	Tool          string             `json:"tool,omitempty"`
	PaintState    string             `json:"paintState,omitempty"`
	UndoEnabled   bool               `json:"undoEnabled"`
	HistoryLength int                `json:"historyLength"`
	Filters       filter.State       `json:"filters"`
	PreviewChain  string             `json:"previewChain"`
	Format        format.Setting     `json:"format"`
	FormatIndex   int                `json:"formatIndex"`
	Cropper       cropper.Data       `json:"cropper"`
	Canvas        cropper.CanvasData `json:"canvas"`
	URL           string             `json:"url"`
}
