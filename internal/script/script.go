package script

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/editor"
	"github.com/DMarby/picsum-editor/internal/filter"
	"github.com/DMarby/picsum-editor/internal/format"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/paint"
	"github.com/DMarby/picsum-editor/internal/params"
	"gopkg.in/yaml.v3"
)

// Ops
const (
	OpFilter       = "filter"
	OpResetFilters = "reset-filters"
	OpCrop         = "crop"
	OpClearCrop    = "clear-crop"
	OpZoom         = "zoom"
	OpRotate       = "rotate"
	OpRotateTo     = "rotate-to"
	OpReflect      = "reflect"
	OpApply        = "apply"
	OpUndo         = "undo"
	OpPaint        = "paint"
	OpExitPaint    = "exit-paint"
	OpTool         = "tool"
	OpBrush        = "brush"
	OpStroke       = "stroke"
	OpApplyPaint   = "apply-paint"
	OpFormat       = "format"
)

// ErrUnknownOp is returned for steps with an unknown op
var ErrUnknownOp = errors.New("unknown op")

// ErrUnknownFormat is returned when a format step names a format that does not exist
var ErrUnknownFormat = errors.New("unknown format")

// Script is a sequence of edits
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is a single edit. Only the fields used by its op are read.
type Step struct {
	Op      string        `yaml:"op"`
	Filter  string        `yaml:"filter,omitempty"`
	Value   float64       `yaml:"value,omitempty"`
	Box     *cropper.Box  `yaml:"box,omitempty"`
	Axis    string        `yaml:"axis,omitempty"`
	Filters *bool         `yaml:"filters,omitempty"`
	Tool    string        `yaml:"tool,omitempty"`
	Color   string        `yaml:"color,omitempty"`
	Size    float64       `yaml:"size,omitempty"`
	Points  []paint.Point `yaml:"points,omitempty"`
	Format  string        `yaml:"format,omitempty"`
}

// Parse reads a script
func Parse(r io.Reader) (*Script, error) {
	var s Script

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, fmt.Errorf("error parsing script: %w", err)
	}

	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	return &s, nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpFilter:
		if _, _, _, err := filter.Range(filter.Name(s.Filter)); err != nil {
			return err
		}
	case OpCrop:
		if s.Box == nil {
			return fmt.Errorf("crop requires a box")
		}
	case OpReflect:
		if s.Axis != string(editor.Horizontal) && s.Axis != string(editor.Vertical) {
			return fmt.Errorf("invalid axis %q", s.Axis)
		}
	case OpTool:
		if _, err := paint.ParseTool(s.Tool); err != nil {
			return err
		}
	case OpBrush:
		if s.Color != "" {
			if _, err := params.Color(s.Color); err != nil {
				return err
			}
		}
	case OpFormat:
		if formatIndex(s.Format) < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownFormat, s.Format)
		}
	case OpResetFilters, OpClearCrop, OpZoom, OpRotate, OpRotateTo, OpApply, OpUndo,
		OpPaint, OpExitPaint, OpStroke, OpApplyPaint:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, s.Op)
	}

	return nil
}

func formatIndex(icon string) int {
	for i, setting := range format.Settings {
		if setting.Icon == icon {
			return i
		}
	}

	return -1
}

// Marshal writes a script
func (s *Script) Marshal(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(s); err != nil {
		return err
	}

	return encoder.Close()
}

// Run replays the script against a session, waiting for every commit to complete
func Run(ctx context.Context, log *logger.Logger, session *editor.Session, s *Script) error {
	if err := session.Wait(ctx); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := run(ctx, session, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}

		if err := session.Wait(ctx); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}

		log.Debugw("ran script step",
			"session-id", session.ID,
			"step", i+1,
			"op", step.Op,
			"history-length", session.HistoryLen(),
		)
	}

	return nil
}

func run(ctx context.Context, session *editor.Session, step Step) error {
	switch step.Op {
	case OpFilter:
		return session.SetFilter(filter.Name(step.Filter), step.Value)
	case OpResetFilters:
		return session.ResetFilters()
	case OpCrop:
		return session.SetCrop(*step.Box)
	case OpClearCrop:
		return session.ClearCrop()
	case OpZoom:
		return session.Zoom(step.Value)
	case OpRotate:
		return session.Rotate(ctx, step.Value)
	case OpRotateTo:
		return session.RotateTo(ctx, step.Value)
	case OpReflect:
		return session.Reflect(ctx, editor.Axis(step.Axis))
	case OpApply:
		return session.ApplyChange(ctx, step.Filters == nil || *step.Filters)
	case OpUndo:
		return session.UndoChange(ctx)
	case OpPaint:
		return session.EnterPaintMode()
	case OpExitPaint:
		return session.ExitPaintMode()
	case OpTool:
		tool, err := paint.ParseTool(step.Tool)
		if err != nil {
			return err
		}
		return session.SetTool(tool)
	case OpBrush:
		if step.Color == "" {
			return session.SetBrush(nil, step.Size)
		}
		col, err := params.Color(step.Color)
		if err != nil {
			return err
		}
		return session.SetBrush(col, step.Size)
	case OpStroke:
		return session.Stroke(step.Points)
	case OpApplyPaint:
		return session.ApplyPaintingCanvas(ctx)
	case OpFormat:
		return selectFormat(session, step.Format)
	}

	return fmt.Errorf("%w: %q", ErrUnknownOp, step.Op)
}

// selectFormat cycles the session format until the named one is current
func selectFormat(session *editor.Session, icon string) error {
	for range format.Settings {
		if session.Status().Format.Icon == icon {
			return nil
		}

		if _, err := session.CycleFormat(); err != nil {
			return err
		}
	}

	if session.Status().Format.Icon == icon {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownFormat, icon)
}
