// Package annotation holds the per-image set of normalized bounding boxes and
// its on-disk text format.
package annotation

import "fmt"

// Box is a YOLO-style bounding box: center and size relative to the image
// dimensions. ClassID indexes the class registry but is never validated
// against it.
type Box struct {
	ClassID int     `json:"class_id"`
	Cx      float64 `json:"cx"`
	Cy      float64 `json:"cy"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
}

// Left returns the normalized x of the left edge
func (b Box) Left() float64 { return b.Cx - b.W/2 }

// Top returns the normalized y of the top edge
func (b Box) Top() float64 { return b.Cy - b.H/2 }

// Right returns the normalized x of the right edge
func (b Box) Right() float64 { return b.Cx + b.W/2 }

// Bottom returns the normalized y of the bottom edge
func (b Box) Bottom() float64 { return b.Cy + b.H/2 }

// Valid reports whether the box has a positive size and lies within the unit square
func (b Box) Valid() bool {
	const eps = 1e-9
	if b.ClassID < 0 || b.W <= 0 || b.H <= 0 {
		return false
	}
	return b.Left() >= -eps && b.Top() >= -eps && b.Right() <= 1+eps && b.Bottom() <= 1+eps
}

// FromCorners builds a box from a normalized top-left corner and size
func FromCorners(classID int, x, y, w, h float64) Box {
	return Box{ClassID: classID, Cx: x + w/2, Cy: y + h/2, W: w, H: h}
}

// Describe formats a box as a one-line list entry, 1-based:
// "3. person (0.412, 0.550, 0.120, 0.300)"
func Describe(index int, label string, b Box) string {
	return fmt.Sprintf("%d. %s (%.3f, %.3f, %.3f, %.3f)", index+1, label, b.Cx, b.Cy, b.W, b.H)
}
