package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/yolo-labeler/pkg/annotation"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
)

var (
	red   = color.NRGBA{255, 0, 0, 255}
	green = color.NRGBA{0, 255, 0, 255}
)

type greenLabeler struct{}

func (greenLabeler) Name(int) string       { return "thing" }
func (greenLabeler) Color(int) color.Color { return green }

func createSolidImage(width, height int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func newScene(viewport geometry.Size, selected int, boxes ...annotation.Box) canvas.Scene {
	e := canvas.New(canvas.DefaultConfig(), nil)
	e.Resize(viewport)
	e.SetImage(geometry.Size{W: 800, H: 600}, boxes)
	e.Select(selected)
	return e.Scene(greenLabeler{})
}

func pixel(img *image.NRGBA, x, y int) color.NRGBA {
	return img.NRGBAAt(x, y)
}

func TestFrameLetterbox(t *testing.T) {
	st := DefaultStyle()
	s := newScene(geometry.Size{W: 400, H: 400}, -1)
	frame := Frame(createSolidImage(800, 600, red), s, st)

	if frame.Bounds() != image.Rect(0, 0, 400, 400) {
		t.Fatalf("Expected 400x400 frame, got %v", frame.Bounds())
	}
	if got := pixel(frame, 200, 10); got != st.Background {
		t.Errorf("Expected background in letterbox band, got %v", got)
	}
	if got := pixel(frame, 200, 200); got != red {
		t.Errorf("Expected image pixel, got %v", got)
	}
}

func TestFrameBoxesAndHandles(t *testing.T) {
	st := DefaultStyle()
	st.Labels = false
	box := annotation.Box{Cx: 0.5, Cy: 0.5, W: 0.25, H: 0.25} // (150,113)-(250,188)
	s := newScene(geometry.Size{W: 400, H: 300}, 0, box)
	frame := Frame(createSolidImage(800, 600, red), s, st)

	if got := pixel(frame, 150, 140); got != green {
		t.Errorf("Expected box stroke on left edge, got %v", got)
	}
	if got := pixel(frame, 200, 150); got != red {
		t.Errorf("Box interior must not be filled, got %v", got)
	}
	if got := pixel(frame, 250, 188); got != st.HandleFill {
		t.Errorf("Expected handle fill at bottom-right corner, got %v", got)
	}
	if got := pixel(frame, 246, 188); got != st.HandleBorder {
		t.Errorf("Expected handle border, got %v", got)
	}
}

func TestFramePendingRect(t *testing.T) {
	st := DefaultStyle()
	e := canvas.New(canvas.DefaultConfig(), nil)
	e.Resize(geometry.Size{W: 400, H: 300})
	e.SetImage(geometry.Size{W: 800, H: 600}, nil)
	e.PointerDown(image.Pt(50, 50), canvas.ButtonPrimary)
	e.PointerMove(image.Pt(150, 150))

	frame := Frame(nil, e.Scene(nil), st)
	if got := pixel(frame, 50, 100); got != st.PendingColor {
		t.Errorf("Expected pending outline, got %v", got)
	}
}

func TestFrameEmptyScene(t *testing.T) {
	st := DefaultStyle()
	e := canvas.New(canvas.DefaultConfig(), nil)
	e.Resize(geometry.Size{W: 20, H: 10})
	frame := Frame(nil, e.Scene(nil), st)
	if frame.Bounds().Dx() != 20 || pixel(frame, 5, 5) != st.Background {
		t.Error("Expected a blank frame without an image")
	}

	if got := Frame(nil, canvas.Scene{}, st); !got.Bounds().Empty() {
		t.Errorf("Expected empty frame for empty viewport, got %v", got.Bounds())
	}
}

func TestAnnotated(t *testing.T) {
	st := DefaultStyle()
	img := createSolidImage(100, 100, red)
	boxes := []annotation.Box{{ClassID: 0, Cx: 0.5, Cy: 0.5, W: 0.5, H: 0.5}}

	out := Annotated(img, boxes, greenLabeler{}, st)
	if out.Bounds() != img.Bounds() {
		t.Fatalf("Expected same size, got %v", out.Bounds())
	}
	if got := pixel(out, 25, 50); got != green {
		t.Errorf("Expected box stroke, got %v", got)
	}
	if got := pixel(out, 50, 50); got != red {
		t.Errorf("Expected untouched interior, got %v", got)
	}
	if got := pixel(out, 27, 15); got != green && got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Expected label tag above the box, got %v", got)
	}
}

func TestStaticSceneRoles(t *testing.T) {
	boxes := []annotation.Box{{Cx: 0.2, Cy: 0.2, W: 0.1, H: 0.1}, {Cx: 0.6, Cy: 0.6, W: 0.1, H: 0.1}}
	s := StaticScene(geometry.Size{W: 100, H: 100}, boxes, nil)
	if s.Boxes[1].Role != canvas.RoleLatest || s.Boxes[0].Role != canvas.RoleNormal {
		t.Error("Expected the last box marked latest")
	}
	if s.Boxes[0].Label != "Class 0" {
		t.Errorf("Unexpected label %q", s.Boxes[0].Label)
	}
	if s.Boxes[0].Rect != image.Rect(15, 15, 25, 25) {
		t.Errorf("Unexpected rect %v", s.Boxes[0].Rect)
	}
}

func TestTextColor(t *testing.T) {
	if textColor(color.NRGBA{255, 255, 255, 255}) != color.Black {
		t.Error("Expected black text on white")
	}
	if textColor(color.NRGBA{0, 0, 80, 255}) != color.White {
		t.Error("Expected white text on dark blue")
	}
}
