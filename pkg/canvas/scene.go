package canvas

import (
	"fmt"
	"image"
	"image/color"

	"github.com/menta2k/yolo-labeler/pkg/annotation"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
)

// Labeler names and colors class ids for display
type Labeler interface {
	Name(id int) string
	Color(id int) color.Color
}

// Role tells the renderer how to emphasize a box
type Role int

const (
	RoleNormal Role = iota
	// RoleLatest marks the top-most box when nothing is selected
	RoleLatest
	RoleSelected
)

// SceneBox is one box as it should appear on screen
type SceneBox struct {
	Index int
	Box   annotation.Box
	Rect  image.Rectangle
	Label string
	Color color.Color
	Role  Role
}

// Scene describes everything a renderer must paint for the current state
type Scene struct {
	Viewport  geometry.Size
	ImageSize geometry.Size
	Transform geometry.Transform
	ImageRect image.Rectangle
	Mode      Mode
	Boxes     []SceneBox

	// Pending is the rectangle being drawn; valid only when Drawing is true
	Pending image.Rectangle
	Drawing bool

	// Handles are the grips of the selected box
	Handles []image.Rectangle
}

// Empty reports whether there is nothing to paint
func (s Scene) Empty() bool {
	return s.ImageSize.Empty() || s.Transform.Scale <= 0
}

// Scene snapshots the current state for painting. A nil Labeler uses the
// synthetic "Class N" labels and a single color.
func (e *Engine) Scene(l Labeler) Scene {
	s := Scene{
		Viewport:  e.viewport,
		ImageSize: e.imageSize,
		Transform: e.transform,
		Mode:      e.Mode(),
	}
	if !e.ready() {
		return s
	}
	s.ImageRect = e.transform.ImageRect(e.imageSize)

	n := e.store.Len()
	s.Boxes = make([]SceneBox, 0, n)
	for i := 0; i < n; i++ {
		b, _ := e.store.At(i)
		sb := SceneBox{
			Index: i,
			Box:   b,
			Rect:  geometry.ToPixelRect(b, e.transform, e.imageSize),
			Label: labelOf(l, b.ClassID),
			Color: colorOf(l, b.ClassID),
		}
		switch {
		case i == e.selected:
			sb.Role = RoleSelected
		case e.selected < 0 && i == n-1:
			sb.Role = RoleLatest
		}
		s.Boxes = append(s.Boxes, sb)
	}

	if g, ok := e.gesture.(drawGesture); ok {
		s.Drawing = true
		s.Pending = image.Rectangle{Min: g.anchor, Max: g.current}.Canon()
	}

	if r, ok := e.pixelRect(e.selected); ok {
		hr := HandleRects(r, e.cfg.HandleSize)
		s.Handles = hr[:]
	}
	return s
}

// Describe lists the boxes as annotation list lines
func (e *Engine) Describe(l Labeler) []string {
	boxes := e.store.Boxes()
	out := make([]string, len(boxes))
	for i, b := range boxes {
		out[i] = annotation.Describe(i, labelOf(l, b.ClassID), b)
	}
	return out
}

var defaultBoxColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}

func labelOf(l Labeler, id int) string {
	if l == nil {
		return fmt.Sprintf("Class %d", id)
	}
	return l.Name(id)
}

func colorOf(l Labeler, id int) color.Color {
	if l == nil {
		return defaultBoxColor
	}
	return l.Color(id)
}
