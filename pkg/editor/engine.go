// Package editor implements the bounding-box interaction engine: the label
// store, hit testing, the pointer-driven state machine and the session that
// connects it to label persistence.
package editor

import (
	"github.com/menta2k/bbox-labeler/pkg/classes"
	"github.com/menta2k/bbox-labeler/pkg/geometry"
	"github.com/menta2k/bbox-labeler/pkg/types"
)

// NoSelection is the selection index when no box is selected
const NoSelection = -1

// Status messages shown to the user
const (
	StatusDeleted     = "Label deleted."
	StatusMarkedTP    = "Marked as true positive."
	StatusMarkedFP    = "Marked as false positive."
	StatusAdded       = "New label added."
	StatusArmed       = "Draw a new box: click and drag on the image."
	StatusReclassed   = "Class changed."
	StatusWaiting     = "Waiting for image parameter (?image=...)."
	StatusNoImageArg  = "No image specified. Call as /label?image=filename.jpg"
	StatusNoImageSave = "No image loaded, cannot save."
	StatusSaved       = "Labels saved."
)

// Mode is the interaction state
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModeMoving
	ModeResizing
)

func (m Mode) String() string {
	switch m {
	case ModeDrawing:
		return "drawing"
	case ModeMoving:
		return "moving"
	case ModeResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Effect tells the caller what an input changed
type Effect struct {
	// Redraw is set when the overlay must be repainted
	Redraw bool
	// Changed is set when the label store was mutated
	Changed bool
	// Status is a new status line, empty if unchanged
	Status string
}

// Row is one entry of the companion label list
type Row struct {
	Index          int    `json:"index"`
	ClassID        int    `json:"cls"`
	ClassLabel     string `json:"label"`
	Color          string `json:"color"`
	IsTruePositive bool   `json:"is_tp"`
	Selected       bool   `json:"selected"`
}

// View is a snapshot of everything the renderer needs
type View struct {
	Width    float64
	Height   float64
	Boxes    []types.Box
	Selected int
	Preview  *types.PixelRect
}

// Engine owns the label store and the selection and drag state. It is not
// safe for concurrent use; a single event loop must own it.
type Engine struct {
	store    *Store
	registry *classes.Registry

	width  float64
	height float64

	mode      Mode
	selected  int
	handle    int
	armed     bool
	dragStart types.Point
	startRect types.PixelRect
	preview   *types.PixelRect

	status string
}

// NewEngine creates an idle engine with an empty store
func NewEngine(registry *classes.Registry) *Engine {
	if registry == nil {
		registry = classes.Default()
	}
	return &Engine{
		store:    NewStore(nil),
		registry: registry,
		selected: NoSelection,
		handle:   -1,
		status:   StatusWaiting,
	}
}

// Registry returns the class registry
func (e *Engine) Registry() *classes.Registry { return e.registry }

// Store returns the label store
func (e *Engine) Store() *Store { return e.store }

// SetCanvasSize sets the canvas pixel size used for all mapping
func (e *Engine) SetCanvasSize(width, height float64) {
	e.width, e.height = width, height
}

// CanvasSize returns the canvas pixel size
func (e *Engine) CanvasSize() (float64, float64) { return e.width, e.height }

// Mode returns the current interaction mode
func (e *Engine) Mode() Mode { return e.mode }

// Selected returns the selected box index or NoSelection
func (e *Engine) Selected() int { return e.selected }

// ActiveHandle returns the handle being dragged, -1 outside resizing
func (e *Engine) ActiveHandle() int {
	if e.mode != ModeResizing {
		return -1
	}
	return e.handle
}

// CreateArmed reports whether the next pointer-down starts a new box
func (e *Engine) CreateArmed() bool { return e.armed }

// Preview returns the transient drawing rectangle
func (e *Engine) Preview() (types.PixelRect, bool) {
	if e.preview == nil {
		return types.PixelRect{}, false
	}
	return *e.preview, true
}

// Status returns the current status line
func (e *Engine) Status() string { return e.status }

// SetStatus replaces the status line
func (e *Engine) SetStatus(s string) { e.status = s }

// Load replaces the store with the boxes of a newly loaded image and resets
// all interaction state.
func (e *Engine) Load(boxes []types.Box) {
	e.store.Replace(boxes)
	e.resetGesture()
	e.armed = false
	e.selected = NoSelection
}

// ArmCreate makes the next pointer-down start drawing a new box
func (e *Engine) ArmCreate() Effect {
	e.armed = true
	e.selected = NoSelection
	return e.say(Effect{Redraw: true}, StatusArmed)
}

// Disarm cancels create mode and any gesture in progress
func (e *Engine) Disarm() Effect {
	e.armed = false
	e.resetGesture()
	return Effect{Redraw: true}
}

// PointerDown handles a press at canvas point pt
func (e *Engine) PointerDown(pt types.Point) Effect {
	if e.mode != ModeIdle {
		e.resetGesture()
	}
	if e.width <= 0 || e.height <= 0 {
		return Effect{}
	}

	if e.armed {
		e.mode = ModeDrawing
		e.dragStart = pt
		e.preview = &types.PixelRect{X: pt.X, Y: pt.Y}
		e.selected = NoSelection
		return Effect{Redraw: true}
	}

	hit := HitTest(pt, e.store.boxes, e.width, e.height)
	switch hit.Kind {
	case HitDelete:
		return e.deleteAt(hit.Box)
	case HitFlag:
		tp, ok := e.store.ToggleFlag(hit.Box)
		if !ok {
			return Effect{}
		}
		if tp {
			return e.say(Effect{Redraw: true, Changed: true}, StatusMarkedTP)
		}
		return e.say(Effect{Redraw: true, Changed: true}, StatusMarkedFP)
	case HitHandle:
		e.beginDrag(ModeResizing, hit.Box, hit.Handle, pt)
		return Effect{Redraw: true}
	case HitBody:
		e.beginDrag(ModeMoving, hit.Box, -1, pt)
		return Effect{Redraw: true}
	default:
		e.selected = NoSelection
		return Effect{Redraw: true}
	}
}

// PointerMove handles pointer motion at canvas point pt
func (e *Engine) PointerMove(pt types.Point) Effect {
	switch e.mode {
	case ModeDrawing:
		r := geometry.NormalizeDrag(e.dragStart, pt)
		e.preview = &r
		return Effect{Redraw: true}
	case ModeMoving, ModeResizing:
		box, ok := e.store.At(e.selected)
		if !ok {
			e.resetGesture()
			return Effect{}
		}
		dx, dy := pt.X-e.dragStart.X, pt.Y-e.dragStart.Y
		var r types.PixelRect
		if e.mode == ModeMoving {
			r = MoveRect(e.startRect, dx, dy, e.width, e.height)
		} else {
			r = ResizeRect(e.handle, e.startRect, dx, dy, e.width, e.height)
		}
		e.store.Set(e.selected, geometry.ApplyPixelRect(box, r, e.width, e.height))
		return Effect{Redraw: true, Changed: true}
	default:
		return Effect{}
	}
}

// PointerUp ends the current gesture. A drawing gesture creates a box when
// both sides of the preview reach MinBoxSize.
func (e *Engine) PointerUp(pt types.Point) Effect {
	eff := Effect{}
	if e.mode == ModeDrawing && e.preview != nil {
		r := *e.preview
		if r.W >= MinBoxSize && r.H >= MinBoxSize && e.width > 0 && e.height > 0 {
			box := geometry.ApplyPixelRect(types.NewBox(0, 0, 0, 0, 0), r, e.width, e.height)
			e.selected = e.store.Append(box)
			eff = e.say(Effect{Redraw: true, Changed: true}, StatusAdded)
		} else {
			eff.Redraw = true
		}
	}
	if e.mode != ModeIdle {
		eff.Redraw = true
	}
	if e.mode == ModeDrawing {
		e.armed = false
	}
	e.resetGesture()
	if !e.store.Valid(e.selected) {
		e.selected = NoSelection
	}
	return eff
}

// PointerLeave is treated exactly like PointerUp
func (e *Engine) PointerLeave(pt types.Point) Effect {
	return e.PointerUp(pt)
}

// Select selects box i from the list view; an invalid index clears selection
func (e *Engine) Select(i int) Effect {
	if e.mode != ModeIdle {
		return Effect{}
	}
	if !e.store.Valid(i) {
		i = NoSelection
	}
	e.selected = i
	return Effect{Redraw: true}
}

// SetClass reclassifies box i. Unknown class ids are rejected.
func (e *Engine) SetClass(i, cls int) Effect {
	if !e.registry.Has(cls) || !e.store.SetClass(i, cls) {
		return Effect{}
	}
	return e.say(Effect{Redraw: true, Changed: true}, StatusReclassed)
}

// DeleteSelected removes the selected box, if any
func (e *Engine) DeleteSelected() Effect {
	if e.mode != ModeIdle || !e.store.Valid(e.selected) {
		return Effect{}
	}
	return e.deleteAt(e.selected)
}

// Rows returns the companion list, one row per box in store order
func (e *Engine) Rows() []Row {
	rows := make([]Row, 0, e.store.Len())
	for i, b := range e.store.boxes {
		rows = append(rows, Row{
			Index:          i,
			ClassID:        b.ClassID,
			ClassLabel:     e.registry.Label(b.ClassID),
			Color:          e.registry.Color(b.ClassID),
			IsTruePositive: b.IsTruePositive,
			Selected:       i == e.selected,
		})
	}
	return rows
}

// View returns a render snapshot
func (e *Engine) View() View {
	v := View{
		Width:    e.width,
		Height:   e.height,
		Boxes:    e.store.All(),
		Selected: e.selected,
	}
	if e.preview != nil {
		p := *e.preview
		v.Preview = &p
	}
	return v
}

func (e *Engine) beginDrag(mode Mode, box, handle int, pt types.Point) {
	b, ok := e.store.At(box)
	if !ok {
		return
	}
	e.selected = box
	e.handle = handle
	e.mode = mode
	e.dragStart = pt
	e.startRect = geometry.ToPixelRect(b, e.width, e.height)
}

func (e *Engine) deleteAt(i int) Effect {
	if !e.store.Remove(i) {
		return Effect{}
	}
	e.selected = RemapAfterDelete(e.selected, i)
	return e.say(Effect{Redraw: true, Changed: true}, StatusDeleted)
}

func (e *Engine) resetGesture() {
	e.mode = ModeIdle
	e.handle = -1
	e.preview = nil
}

func (e *Engine) say(eff Effect, status string) Effect {
	e.status = status
	eff.Status = status
	return eff
}
