// Package geometry converts annotation boxes between the normalized YOLO
// format and viewport pixel space.
package geometry

import (
	"image"
	"math"

	"github.com/menta2k/yolo-labeler/pkg/annotation"
)

// Size is a width/height pair in pixels
type Size struct {
	W int
	H int
}

// Empty reports whether either dimension is not positive
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Transform maps image pixels to viewport pixels: viewport = image*Scale + Offset
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Identity returns a transform that leaves coordinates unchanged
func Identity() Transform {
	return Transform{Scale: 1}
}

// Fit computes the largest aspect-preserving, centered placement of an image
// inside a viewport. ok is false when the viewport or image has no area; the
// caller should then keep its previous transform and skip painting.
func Fit(img, viewport Size) (t Transform, ok bool) {
	if viewport.Empty() || img.Empty() {
		return Transform{}, false
	}

	scaleX := float64(viewport.W) / float64(img.W)
	scaleY := float64(viewport.H) / float64(img.H)
	scale := math.Min(scaleX, scaleY)

	scaledW := float64(img.W) * scale
	scaledH := float64(img.H) * scale

	return Transform{
		Scale:   scale,
		OffsetX: math.Floor((float64(viewport.W) - scaledW) / 2),
		OffsetY: math.Floor((float64(viewport.H) - scaledH) / 2),
	}, true
}

// ImageBounds returns the displayed image area in viewport coordinates
func (t Transform) ImageBounds(size Size) Bounds {
	return Bounds{
		Left:   t.OffsetX,
		Top:    t.OffsetY,
		Right:  t.OffsetX + float64(size.W)*t.Scale,
		Bottom: t.OffsetY + float64(size.H)*t.Scale,
	}
}

// ImageRect returns the displayed image area truncated to whole pixels
func (t Transform) ImageRect(size Size) image.Rectangle {
	b := t.ImageBounds(size)
	return image.Rect(int(b.Left), int(b.Top), int(b.Right), int(b.Bottom))
}

// InImage reports whether p lies inside the displayed image area, edges included
func (t Transform) InImage(p image.Point, size Size) bool {
	b := t.ImageBounds(size)
	x, y := float64(p.X), float64(p.Y)
	return x >= b.Left && x <= b.Right && y >= b.Top && y <= b.Bottom
}

// Bounds is an unrounded rectangle given by its four edges
type Bounds struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Width returns Right-Left
func (b Bounds) Width() float64 { return b.Right - b.Left }

// Height returns Bottom-Top
func (b Bounds) Height() float64 { return b.Bottom - b.Top }

// BoundsFromRect converts an integer rectangle to Bounds
func BoundsFromRect(r image.Rectangle) Bounds {
	return Bounds{
		Left:   float64(r.Min.X),
		Top:    float64(r.Min.Y),
		Right:  float64(r.Max.X),
		Bottom: float64(r.Max.Y),
	}
}

// BoundsOf projects a normalized box into viewport pixel space without rounding
func BoundsOf(box annotation.Box, t Transform, size Size) Bounds {
	imgW := box.W * float64(size.W)
	imgH := box.H * float64(size.H)
	imgX := box.Cx*float64(size.W) - imgW/2
	imgY := box.Cy*float64(size.H) - imgH/2

	left := imgX*t.Scale + t.OffsetX
	top := imgY*t.Scale + t.OffsetY
	return Bounds{
		Left:   left,
		Top:    top,
		Right:  left + imgW*t.Scale,
		Bottom: top + imgH*t.Scale,
	}
}

// BoxFromBounds is the inverse of BoundsOf
func BoxFromBounds(classID int, b Bounds, t Transform, size Size) annotation.Box {
	imgX := (b.Left - t.OffsetX) / t.Scale
	imgY := (b.Top - t.OffsetY) / t.Scale
	imgW := b.Width() / t.Scale
	imgH := b.Height() / t.Scale

	return annotation.Box{
		ClassID: classID,
		Cx:      (imgX + imgW/2) / float64(size.W),
		Cy:      (imgY + imgH/2) / float64(size.H),
		W:       imgW / float64(size.W),
		H:       imgH / float64(size.H),
	}
}

// ToPixelRect projects a normalized box to a viewport rectangle. The top-left
// corner and the size are rounded to the nearest pixel independently.
func ToPixelRect(box annotation.Box, t Transform, size Size) image.Rectangle {
	b := BoundsOf(box, t, size)
	x := int(math.Round(b.Left))
	y := int(math.Round(b.Top))
	w := int(math.Round(b.Width()))
	h := int(math.Round(b.Height()))
	return image.Rect(x, y, x+w, y+h)
}

// ToNormalized converts a viewport rectangle back to a normalized box
func ToNormalized(classID int, r image.Rectangle, t Transform, size Size) annotation.Box {
	return BoxFromBounds(classID, BoundsFromRect(r.Canon()), t, size)
}

// ClampToImage clamps a viewport point into the displayed image area
func ClampToImage(p image.Point, t Transform, size Size) image.Point {
	r := t.ImageRect(size)
	return image.Point{
		X: clampInt(p.X, r.Min.X, r.Max.X),
		Y: clampInt(p.Y, r.Min.Y, r.Max.Y),
	}
}

// ClampCenterToUnitSquare keeps a box inside [0,1]x[0,1] by moving its center;
// the size is left unchanged.
func ClampCenterToUnitSquare(box annotation.Box) annotation.Box {
	box.Cx = clamp(box.Cx, box.W/2, 1-box.W/2)
	box.Cy = clamp(box.Cy, box.H/2, 1-box.H/2)
	return box
}

// Contains reports whether p lies in r with all four edges inclusive
func Contains(r image.Rectangle, p image.Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		// box larger than the unit square on this axis: pin it to the middle
		return (lo + hi) / 2
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
