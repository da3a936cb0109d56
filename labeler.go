// Package labeler edits YOLO-style bounding-box annotations for a folder of
// images without a window: every operation the editor offers is available
// headlessly through the canvas engine of the open image.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"image"
//		"log"
//
//		labeler "github.com/menta2k/yolo-labeler"
//		"github.com/menta2k/yolo-labeler/pkg/canvas"
//		"github.com/menta2k/yolo-labeler/pkg/geometry"
//	)
//
//	func main() {
//		l, err := labeler.Open("./dataset")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer l.Close()
//
//		// Open the first image in an 800x600 view and drag out a box
//		e, err := l.Edit(0, geometry.Size{W: 800, H: 600})
//		if err != nil {
//			log.Fatal(err)
//		}
//		e.PointerDown(image.Pt(100, 100), canvas.ButtonPrimary)
//		e.PointerMove(image.Pt(300, 250))
//		e.PointerUp(image.Pt(300, 250))
//
//		for _, line := range l.Workspace().Describe() {
//			fmt.Println(line)
//		}
//	}
//
// The module consists of these components:
//
// 1. Geometry (pkg/geometry): view transform and box/pixel conversions
// 2. Annotation (pkg/annotation): the box store and the .txt file format
// 3. Canvas (pkg/canvas): hit-testing and the draw/move/resize state machine
// 4. Classes (pkg/classes): the classes.txt registry and class colors
// 5. Workspace (pkg/workspace): folder sessions and folder-wide class remaps
// 6. Render and Vision (pkg/render, pkg/vision): previews and pre-labelling
package labeler

import (
	"fmt"
	"image"

	"github.com/menta2k/yolo-labeler/internal/logger"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
	"github.com/menta2k/yolo-labeler/pkg/imageio"
	"github.com/menta2k/yolo-labeler/pkg/render"
	"github.com/menta2k/yolo-labeler/pkg/workspace"
)

// Version of the labeler
const Version = "1.0.0"

// Labeler provides a high-level interface over one image folder
type Labeler struct {
	ws    *workspace.Workspace
	style render.Style
}

// Open opens dir with the default editing sizes
func Open(dir string) (*Labeler, error) {
	return OpenWithConfig(dir, canvas.DefaultConfig(), nil)
}

// OpenWithConfig opens dir with custom editing sizes and logger
func OpenWithConfig(dir string, cfg canvas.Config, log *logger.Logger) (*Labeler, error) {
	ws, err := workspace.Open(dir, workspace.Options{Canvas: cfg, Logger: log})
	if err != nil {
		return nil, err
	}
	return &Labeler{ws: ws, style: render.DefaultStyle()}, nil
}

// Workspace returns the underlying session
func (l *Labeler) Workspace() *workspace.Workspace {
	return l.ws
}

// Edit opens image i in a viewport of the given size and returns its engine
func (l *Labeler) Edit(i int, viewport geometry.Size) (*canvas.Engine, error) {
	if err := l.ws.OpenImage(i); err != nil {
		return nil, err
	}
	e := l.ws.Engine()
	e.Resize(viewport)
	return e, nil
}

// Frame rasterizes the open image as the editor shows it
func (l *Labeler) Frame() (*image.NRGBA, error) {
	if l.ws.Index() < 0 {
		return nil, workspace.ErrNoImageOpen
	}
	e := l.ws.Engine()
	return render.Frame(l.ws.Image(), e.Scene(l.ws.Classes()), l.style), nil
}

// Preview paints the saved boxes of image i at full resolution
func (l *Labeler) Preview(i int) (*image.NRGBA, error) {
	images := l.ws.Images()
	if i < 0 || i >= len(images) {
		return nil, fmt.Errorf("%w: %d", workspace.ErrIndexOutOfRange, i)
	}
	img, err := imageio.Load(images[i])
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	boxes, err := l.ws.Annotations(i)
	if err != nil {
		return nil, err
	}
	return render.Annotated(img, boxes, l.ws.Classes(), l.style), nil
}

// Stats summarizes the annotations of the folder
type Stats struct {
	Images    int            `json:"images"`
	Annotated int            `json:"annotated"`
	Boxes     int            `json:"boxes"`
	PerClass  map[string]int `json:"per_class"`
}

// Stats counts boxes per class over every image. Unreadable annotation
// files are skipped.
func (l *Labeler) Stats() Stats {
	s := Stats{Images: l.ws.Len(), PerClass: make(map[string]int)}
	reg := l.ws.Classes()
	for i := 0; i < l.ws.Len(); i++ {
		boxes, err := l.ws.Annotations(i)
		if err != nil {
			continue
		}
		if len(boxes) > 0 {
			s.Annotated++
		}
		s.Boxes += len(boxes)
		for _, b := range boxes {
			s.PerClass[reg.Name(b.ClassID)]++
		}
	}
	return s
}

// Close writes the open image's annotations
func (l *Labeler) Close() error {
	return l.ws.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
