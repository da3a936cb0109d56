// Package render rasterizes a canvas scene: the image fitted into the
// viewport with every box, its label, the selection grips and the box being
// drawn painted on top.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/yolo-labeler/pkg/annotation"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
)

// Style controls colors and stroke widths of the overlay
type Style struct {
	Background     color.Color
	Stroke         int
	LatestStroke   int
	SelectedStroke int
	HandleFill     color.Color
	HandleBorder   color.Color
	PendingColor   color.Color
	Labels         bool
}

// DefaultStyle returns the overlay style used by the editor
func DefaultStyle() Style {
	return Style{
		Background:     color.NRGBA{40, 40, 40, 255},
		Stroke:         2,
		LatestStroke:   3,
		SelectedStroke: 3,
		HandleFill:     color.NRGBA{255, 255, 255, 255},
		HandleBorder:   color.NRGBA{0, 0, 0, 255},
		PendingColor:   color.NRGBA{255, 204, 0, 255},
		Labels:         true,
	}
}

var face = basicfont.Face7x13

// Frame paints img and the scene overlay into a viewport-sized image. img
// may be nil, in which case only the overlay is painted.
func Frame(img image.Image, s canvas.Scene, st Style) *image.NRGBA {
	w, h := s.Viewport.W, s.Viewport.H
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	dst := imaging.New(w, h, st.Background)
	if s.Empty() {
		return dst
	}

	if img != nil && !s.ImageRect.Empty() {
		scaled := imaging.Resize(img, s.ImageRect.Dx(), s.ImageRect.Dy(), imaging.Linear)
		dst = imaging.Paste(dst, scaled, s.ImageRect.Min)
	}
	Overlay(dst, s, st)
	return dst
}

// Overlay paints the boxes of s onto dst, which is in viewport coordinates
func Overlay(dst *image.NRGBA, s canvas.Scene, st Style) {
	// selected box goes last so its outline is never hidden
	var selected *canvas.SceneBox
	for i := range s.Boxes {
		b := &s.Boxes[i]
		if b.Role == canvas.RoleSelected {
			selected = b
			continue
		}
		paintBox(dst, *b, st)
	}
	if selected != nil {
		paintBox(dst, *selected, st)
	}

	for _, hr := range s.Handles {
		fillRect(dst, hr, toNRGBA(st.HandleFill))
		drawRect(dst, hr, toNRGBA(st.HandleBorder), 1)
	}

	if s.Drawing && !s.Pending.Empty() {
		drawRect(dst, s.Pending, toNRGBA(st.PendingColor), 1)
	}
}

// Annotated paints boxes onto a full-resolution copy of img
func Annotated(img image.Image, boxes []annotation.Box, l canvas.Labeler, st Style) *image.NRGBA {
	b := img.Bounds()
	size := geometry.Size{W: b.Dx(), H: b.Dy()}
	dst := imaging.Clone(img)
	Overlay(dst, StaticScene(size, boxes, l), st)
	return dst
}

// StaticScene builds a scene showing boxes over an unscaled image with
// nothing selected.
func StaticScene(size geometry.Size, boxes []annotation.Box, l canvas.Labeler) canvas.Scene {
	t := geometry.Identity()
	s := canvas.Scene{
		Viewport:  size,
		ImageSize: size,
		Transform: t,
		ImageRect: t.ImageRect(size),
		Mode:      canvas.Idle,
		Boxes:     make([]canvas.SceneBox, len(boxes)),
	}
	for i, b := range boxes {
		sb := canvas.SceneBox{
			Index: i,
			Box:   b,
			Rect:  geometry.ToPixelRect(b, t, size),
			Label: fmt.Sprintf("Class %d", b.ClassID),
			Color: color.NRGBA{0, 0, 255, 255},
		}
		if l != nil {
			sb.Label = l.Name(b.ClassID)
			sb.Color = l.Color(b.ClassID)
		}
		if i == len(boxes)-1 {
			sb.Role = canvas.RoleLatest
		}
		s.Boxes[i] = sb
	}
	return s
}

func paintBox(dst *image.NRGBA, b canvas.SceneBox, st Style) {
	c := toNRGBA(b.Color)
	stroke := st.Stroke
	switch b.Role {
	case canvas.RoleSelected:
		stroke = st.SelectedStroke
	case canvas.RoleLatest:
		stroke = st.LatestStroke
	}
	drawRect(dst, b.Rect, c, stroke)
	if st.Labels && b.Label != "" {
		drawLabel(dst, b.Rect, b.Label, c)
	}
}

// drawLabel draws text on a tag of color c just above r, or inside r when
// there is no room above.
func drawLabel(dst *image.NRGBA, r image.Rectangle, text string, c color.NRGBA) {
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil() + 2
	w := font.MeasureString(face, text).Ceil() + 4

	top := r.Min.Y - h
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	tag := image.Rect(r.Min.X, top, r.Min.X+w, top+h)
	fillRect(dst, tag, c)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor(c)),
		Face: face,
		Dot:  fixed.P(tag.Min.X+2, tag.Min.Y+1+m.Ascent.Ceil()),
	}
	d.DrawString(text)
}

// textColor picks black or white for legibility on background c
func textColor(c color.NRGBA) color.Color {
	l, _, _ := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Lab()
	if l > 0.6 {
		return color.Black
	}
	return color.White
}

func toNRGBA(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{0, 0, 255, 255}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawRect strokes r inward with the given width
func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Canon()
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	if stroke < 1 {
		stroke = 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0, x1 = max(x0, b.Min.X), min(x1, b.Max.X)
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0, y1 = max(y0, b.Min.Y), min(y1, b.Max.Y)
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
