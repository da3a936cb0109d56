// Package canvas is the annotation canvas engine: it keeps the view transform
// of the displayed image, owns the box store of the open image, hit-tests
// pointer input and runs the draw/select/move/resize interaction.
//
// The engine never paints. Hosts feed it pointer and key events, listen to
// OnChange and ask for a Scene describing what to draw.
package canvas

import (
	"image"

	"github.com/menta2k/yolo-labeler/pkg/annotation"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
)

// Mode is the externally visible interaction state
type Mode int

const (
	Idle Mode = iota
	Drawing
	Selected
	Moving
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Drawing:
		return "drawing"
	case Selected:
		return "selected"
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Button is a pointer button
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
)

// Key is a keyboard command understood by the engine
type Key int

const (
	KeyDelete Key = iota
	KeyEscape
)

// ClassSource supplies the class context for new boxes
type ClassSource interface {
	// Len returns the number of known classes
	Len() int
	// Current returns the class id assigned to newly drawn boxes
	Current() int
	// EnsureClass reports whether drawing may start, giving the host a
	// chance to create the first class.
	EnsureClass() bool
}

// Config holds the pixel sizes used by hit-testing and editing
type Config struct {
	HandleSize  int // side of the square resize grips
	MinBoxSize  int // smallest width/height a resize can produce
	MinDrawSize int // a drawn box must exceed this on both axes to be kept
}

// DefaultConfig returns the standard editing sizes
func DefaultConfig() Config {
	return Config{
		HandleSize:  8,
		MinBoxSize:  10,
		MinDrawSize: 5,
	}
}

// gesture is the state of an in-progress pointer interaction. Each variant
// carries only what its mode needs.
type gesture interface {
	mode() Mode
}

type idleGesture struct{}

type drawGesture struct {
	anchor  image.Point
	current image.Point
}

type moveGesture struct {
	index    int
	anchor   image.Point
	snapshot annotation.Box
}

type resizeGesture struct {
	index    int
	handle   Handle
	anchor   image.Point
	snapshot geometry.Bounds
	original annotation.Box
}

func (idleGesture) mode() Mode   { return Idle }
func (drawGesture) mode() Mode   { return Drawing }
func (moveGesture) mode() Mode   { return Moving }
func (resizeGesture) mode() Mode { return Resizing }

// Engine is the interaction state machine for one open image at a time
type Engine struct {
	cfg     Config
	classes ClassSource

	store     *annotation.Store
	imageSize geometry.Size
	viewport  geometry.Size
	transform geometry.Transform
	loaded    bool

	selected int
	gesture  gesture

	onChange func()
}

// New creates an engine. A nil ClassSource allows drawing with class 0.
func New(cfg Config, classes ClassSource) *Engine {
	if classes == nil {
		classes = defaultClasses{}
	}
	return &Engine{
		cfg:      cfg,
		classes:  classes,
		store:    annotation.NewStore(nil),
		selected: -1,
		gesture:  idleGesture{},
	}
}

type defaultClasses struct{}

func (defaultClasses) Len() int          { return 1 }
func (defaultClasses) Current() int      { return 0 }
func (defaultClasses) EnsureClass() bool { return true }

// OnChange registers the view-changed callback
func (e *Engine) OnChange(fn func()) {
	e.onChange = fn
}

func (e *Engine) changed() {
	if e.onChange != nil {
		e.onChange()
	}
}

// SetImage starts editing a new image, replacing the store wholesale.
// Selection and any gesture are discarded.
func (e *Engine) SetImage(size geometry.Size, boxes []annotation.Box) {
	e.imageSize = size
	e.loaded = !size.Empty()
	e.store.Reset(boxes)
	e.selected = -1
	e.gesture = idleGesture{}
	e.refit()
	e.changed()
}

// ClearImage closes the current image
func (e *Engine) ClearImage() {
	e.imageSize = geometry.Size{}
	e.loaded = false
	e.store.Reset(nil)
	e.selected = -1
	e.gesture = idleGesture{}
	e.transform = geometry.Transform{}
	e.changed()
}

// Resize records a new viewport size and recomputes the view transform. A
// viewport without area leaves the previous transform in place.
func (e *Engine) Resize(viewport geometry.Size) {
	e.viewport = viewport
	if e.refit() {
		e.changed()
	}
}

func (e *Engine) refit() bool {
	if !e.loaded {
		return false
	}
	t, ok := geometry.Fit(e.imageSize, e.viewport)
	if !ok {
		return false
	}
	e.transform = t
	return true
}

// ready reports whether pointer input can be mapped onto the image
func (e *Engine) ready() bool {
	return e.loaded && e.transform.Scale > 0
}

// HasImage reports whether an image is open
func (e *Engine) HasImage() bool { return e.loaded }

// ImageSize returns the size of the open image
func (e *Engine) ImageSize() geometry.Size { return e.imageSize }

// Viewport returns the last viewport size given to Resize
func (e *Engine) Viewport() geometry.Size { return e.viewport }

// Transform returns the current view transform
func (e *Engine) Transform() geometry.Transform { return e.transform }

// Config returns the editing sizes
func (e *Engine) Config() Config { return e.cfg }

// Boxes returns a copy of the boxes of the open image
func (e *Engine) Boxes() []annotation.Box { return e.store.Boxes() }

// Len returns the number of boxes
func (e *Engine) Len() int { return e.store.Len() }

// Mode returns the current interaction state
func (e *Engine) Mode() Mode {
	m := e.gesture.mode()
	if m == Idle && e.selected >= 0 {
		return Selected
	}
	return m
}

// Selected returns the selected box index
func (e *Engine) Selected() (int, bool) {
	return e.selected, e.selected >= 0
}

// Select selects the box at index i; -1 clears the selection
func (e *Engine) Select(i int) bool {
	if i < -1 || i >= e.store.Len() {
		return false
	}
	if e.selected != i {
		e.selected = i
		e.changed()
	}
	return true
}

// AddBoxes appends boxes on top of the existing ones
func (e *Engine) AddBoxes(boxes ...annotation.Box) {
	if len(boxes) == 0 {
		return
	}
	for _, b := range boxes {
		e.store.Append(b)
	}
	e.changed()
}

// SetClass changes the class of the box at index i
func (e *Engine) SetClass(i, classID int) bool {
	b, ok := e.store.At(i)
	if !ok {
		return false
	}
	b.ClassID = classID
	e.store.Replace(i, b)
	e.changed()
	return true
}

// Remap rewrites class ids through mapping, dropping boxes of deleted
// classes. Selection and gestures are cleared since indices may shift.
func (e *Engine) Remap(mapping map[int]int) int {
	dropped := e.store.Remap(mapping)
	e.selected = -1
	e.gesture = idleGesture{}
	e.changed()
	return dropped
}

// DeleteBox removes the box at index i and keeps the selection pointing at
// the same logical box.
func (e *Engine) DeleteBox(i int) bool {
	if !e.store.Delete(i) {
		return false
	}

	switch {
	case e.selected == i:
		e.selected = -1
	case i < e.selected:
		e.selected--
	}

	switch g := e.gesture.(type) {
	case moveGesture:
		if g.index == i {
			e.gesture = idleGesture{}
		} else if i < g.index {
			g.index--
			e.gesture = g
		}
	case resizeGesture:
		if g.index == i {
			e.gesture = idleGesture{}
		} else if i < g.index {
			g.index--
			e.gesture = g
		}
	}

	e.changed()
	return true
}

// pixelRect returns the viewport rectangle of box i
func (e *Engine) pixelRect(i int) (image.Rectangle, bool) {
	b, ok := e.store.At(i)
	if !ok {
		return image.Rectangle{}, false
	}
	return geometry.ToPixelRect(b, e.transform, e.imageSize), true
}

// BoxAt returns the top-most box containing p, or -1
func (e *Engine) BoxAt(p image.Point) int {
	if !e.ready() {
		return -1
	}
	for i := e.store.Len() - 1; i >= 0; i-- {
		r, _ := e.pixelRect(i)
		if geometry.Contains(r, p) {
			return i
		}
	}
	return -1
}

// HandleAt returns the grip of the selected box under p
func (e *Engine) HandleAt(p image.Point) (Handle, bool) {
	if !e.ready() || e.selected < 0 {
		return -1, false
	}
	r, ok := e.pixelRect(e.selected)
	if !ok {
		return -1, false
	}
	return HandleAt(p, r, e.cfg.HandleSize)
}

// PointerDown handles a button press at viewport position p
func (e *Engine) PointerDown(p image.Point, button Button) {
	if !e.ready() {
		return
	}
	if button == ButtonSecondary {
		if i := e.BoxAt(p); i >= 0 {
			e.DeleteBox(i)
		}
		return
	}
	if _, idle := e.gesture.(idleGesture); !idle {
		return
	}

	if h, ok := e.HandleAt(p); ok {
		box, _ := e.store.At(e.selected)
		e.gesture = resizeGesture{
			index:    e.selected,
			handle:   h,
			anchor:   p,
			snapshot: geometry.BoundsOf(box, e.transform, e.imageSize),
			original: box,
		}
		e.changed()
		return
	}

	if i := e.BoxAt(p); i >= 0 {
		if i == e.selected {
			box, _ := e.store.At(i)
			e.gesture = moveGesture{index: i, anchor: p, snapshot: box}
		} else {
			// a click on another box only selects it; the next press moves it
			e.selected = i
		}
		e.changed()
		return
	}

	hadSelection := e.selected >= 0
	e.selected = -1
	if e.transform.InImage(p, e.imageSize) && e.classes.EnsureClass() {
		start := geometry.ClampToImage(p, e.transform, e.imageSize)
		e.gesture = drawGesture{anchor: start, current: start}
		e.changed()
		return
	}
	if hadSelection {
		e.changed()
	}
}

// PointerMove handles pointer motion while a button may be held
func (e *Engine) PointerMove(p image.Point) {
	if !e.ready() {
		return
	}

	switch g := e.gesture.(type) {
	case drawGesture:
		g.current = geometry.ClampToImage(p, e.transform, e.imageSize)
		e.gesture = g
		e.changed()

	case moveGesture:
		// deltas are taken against the drag-start snapshot so nothing accumulates
		box := g.snapshot
		box.Cx += float64(p.X-g.anchor.X) / (float64(e.imageSize.W) * e.transform.Scale)
		box.Cy += float64(p.Y-g.anchor.Y) / (float64(e.imageSize.H) * e.transform.Scale)
		e.store.Replace(g.index, geometry.ClampCenterToUnitSquare(box))
		e.changed()

	case resizeGesture:
		b := resizeBounds(g.snapshot, g.handle,
			float64(p.X-g.anchor.X), float64(p.Y-g.anchor.Y),
			e.transform.ImageBounds(e.imageSize), float64(e.cfg.MinBoxSize))
		e.store.Replace(g.index, geometry.BoxFromBounds(g.original.ClassID, b, e.transform, e.imageSize))
		e.changed()
	}
}

// PointerUp handles a button release
func (e *Engine) PointerUp(p image.Point) {
	if !e.ready() {
		return
	}

	switch g := e.gesture.(type) {
	case drawGesture:
		e.gesture = idleGesture{}
		g.current = geometry.ClampToImage(p, e.transform, e.imageSize)
		r := image.Rectangle{Min: g.anchor, Max: g.current}.Canon()
		if r.Dx() > e.cfg.MinDrawSize && r.Dy() > e.cfg.MinDrawSize {
			classID := e.classes.Current()
			if classID < 0 {
				classID = 0
			}
			box := geometry.ToNormalized(classID, r, e.transform, e.imageSize)
			e.selected = e.store.Append(box)
		}
		e.changed()

	case moveGesture, resizeGesture:
		// the store already holds the geometry of the last move event
		e.gesture = idleGesture{}
		e.changed()
	}
}

// KeyDown handles a keyboard command
func (e *Engine) KeyDown(k Key) {
	switch k {
	case KeyDelete:
		if e.selected >= 0 {
			e.DeleteBox(e.selected)
		}

	case KeyEscape:
		switch g := e.gesture.(type) {
		case moveGesture:
			e.store.Replace(g.index, g.snapshot)
		case resizeGesture:
			e.store.Replace(g.index, g.original)
		}
		_, wasIdle := e.gesture.(idleGesture)
		hadSelection := e.selected >= 0
		e.gesture = idleGesture{}
		e.selected = -1
		if !wasIdle || hadSelection {
			e.changed()
		}
	}
}

// Cursor returns the pointer affordance for position p
func (e *Engine) Cursor(p image.Point) Cursor {
	switch g := e.gesture.(type) {
	case drawGesture:
		return CursorCrosshair
	case moveGesture:
		return CursorMove
	case resizeGesture:
		return g.handle.Cursor()
	}

	if !e.ready() || e.selected < 0 {
		return CursorDefault
	}
	if h, ok := e.HandleAt(p); ok {
		return h.Cursor()
	}
	if r, ok := e.pixelRect(e.selected); ok && geometry.Contains(r, p) {
		return CursorMove
	}
	return CursorDefault
}
