package canvas

import (
	"image"
	"math"

	"github.com/menta2k/yolo-labeler/pkg/geometry"
)

// Handle identifies one of the eight resize grips of the selected box
type Handle int

// Handles are hit-tested in this order; the first match wins.
const (
	TopLeft Handle = iota
	Top
	TopRight
	Right
	BottomRight
	Bottom
	BottomLeft
	Left
)

var handleNames = [...]string{"tl", "t", "tr", "r", "br", "b", "bl", "l"}

func (h Handle) String() string {
	if h < TopLeft || h > Left {
		return "none"
	}
	return handleNames[h]
}

// edges reports which of the left, top, right and bottom edges the handle drags
func (h Handle) edges() (left, top, right, bottom bool) {
	switch h {
	case TopLeft:
		return true, true, false, false
	case Top:
		return false, true, false, false
	case TopRight:
		return false, true, true, false
	case Right:
		return false, false, true, false
	case BottomRight:
		return false, false, true, true
	case Bottom:
		return false, false, false, true
	case BottomLeft:
		return true, false, false, true
	case Left:
		return true, false, false, false
	}
	return false, false, false, false
}

// Cursor is the pointer affordance the host should show
type Cursor int

const (
	CursorDefault Cursor = iota
	CursorMove
	CursorCrosshair
	CursorResizeNWSE
	CursorResizeNESW
	CursorResizeHorizontal
	CursorResizeVertical
)

func (c Cursor) String() string {
	switch c {
	case CursorMove:
		return "move"
	case CursorCrosshair:
		return "crosshair"
	case CursorResizeNWSE:
		return "resize-nwse"
	case CursorResizeNESW:
		return "resize-nesw"
	case CursorResizeHorizontal:
		return "resize-ew"
	case CursorResizeVertical:
		return "resize-ns"
	default:
		return "default"
	}
}

// Cursor returns the resize direction of the handle
func (h Handle) Cursor() Cursor {
	switch h {
	case TopLeft, BottomRight:
		return CursorResizeNWSE
	case TopRight, BottomLeft:
		return CursorResizeNESW
	case Left, Right:
		return CursorResizeHorizontal
	case Top, Bottom:
		return CursorResizeVertical
	}
	return CursorDefault
}

// HandleRects returns the eight square grips of r, each size pixels wide and
// centered on a corner or edge midpoint, indexed by Handle.
func HandleRects(r image.Rectangle, size int) [8]image.Rectangle {
	hs := size / 2
	cx := (r.Min.X + r.Max.X) / 2
	cy := (r.Min.Y + r.Max.Y) / 2
	sq := func(x, y int) image.Rectangle {
		return image.Rect(x-hs, y-hs, x-hs+size, y-hs+size)
	}
	return [8]image.Rectangle{
		TopLeft:     sq(r.Min.X, r.Min.Y),
		Top:         sq(cx, r.Min.Y),
		TopRight:    sq(r.Max.X, r.Min.Y),
		Right:       sq(r.Max.X, cy),
		BottomRight: sq(r.Max.X, r.Max.Y),
		Bottom:      sq(cx, r.Max.Y),
		BottomLeft:  sq(r.Min.X, r.Max.Y),
		Left:        sq(r.Min.X, cy),
	}
}

// HandleAt returns the first grip of r containing p
func HandleAt(p image.Point, r image.Rectangle, size int) (Handle, bool) {
	for i, hr := range HandleRects(r, size) {
		if p.In(hr) {
			return Handle(i), true
		}
	}
	return -1, false
}

// resizeBounds applies a pointer delta to the edges dragged by h. Every edge
// stays inside limit and the box stays at least minSize on both axes; when the
// minimum is violated the dragged edge is pushed back, not the anchored one.
// An undersized axis with no dragged edge grows toward its high edge.
func resizeBounds(snap geometry.Bounds, h Handle, dx, dy float64, limit geometry.Bounds, minSize float64) geometry.Bounds {
	moveL, moveT, moveR, moveB := h.edges()
	out := snap
	out.Left, out.Right = resizeSpan(snap.Left, snap.Right, moveL, moveR, dx, limit.Left, limit.Right, minSize)
	out.Top, out.Bottom = resizeSpan(snap.Top, snap.Bottom, moveT, moveB, dy, limit.Top, limit.Bottom, minSize)
	return out
}

func resizeSpan(lo, hi float64, moveLo, moveHi bool, d, limLo, limHi, minSize float64) (float64, float64) {
	if limHi-limLo < minSize {
		// the image itself is smaller than the minimum on this axis
		minSize = limHi - limLo
	}

	if moveLo {
		lo = clampF(lo+d, limLo, limHi)
		if hi-lo < minSize {
			lo = hi - minSize
		}
		if lo < limLo {
			lo = limLo
			hi = math.Max(hi, lo+minSize)
		}
	}
	if moveHi {
		hi = clampF(hi+d, limLo, limHi)
		if hi-lo < minSize {
			hi = lo + minSize
		}
		if hi > limHi {
			hi = limHi
			lo = math.Min(lo, hi-minSize)
		}
	}
	// an axis without a dragged edge can still start below the minimum
	if hi-lo < minSize {
		hi = lo + minSize
		if hi > limHi {
			hi = limHi
			lo = hi - minSize
		}
	}
	return clampF(lo, limLo, limHi), clampF(hi, limLo, limHi)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
