// Package vision proposes boxes for an image, either by asking a vision
// language model or with an offline saliency heuristic, and converts the
// proposals into annotation boxes.
package vision

import (
	"context"
	"image"

	"github.com/menta2k/yolo-labeler/pkg/annotation"
)

// Rect is a normalized rectangle given by its top-left corner and size
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one proposed object
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// Result is the set of proposals for one image
type Result struct {
	Objects     []Detection `json:"objects"`
	Description string      `json:"description,omitempty"`
}

// Proposer suggests objects in an image
type Proposer interface {
	Propose(ctx context.Context, img image.Image) (*Result, error)
}

// Resolver maps a detection label to a class id
type Resolver func(label string) (int, bool)

// Boxes converts the detections into annotation boxes. Detections whose
// label resolve rejects, or whose box is empty, are returned as skipped.
func (r *Result) Boxes(resolve Resolver) (boxes []annotation.Box, skipped []Detection) {
	for _, d := range r.Objects {
		id, ok := resolve(d.Label)
		if !ok || id < 0 {
			skipped = append(skipped, d)
			continue
		}
		rect := clampRect(d.Box)
		if rect.W <= 0 || rect.H <= 0 {
			skipped = append(skipped, d)
			continue
		}
		boxes = append(boxes, annotation.FromCorners(id, rect.X, rect.Y, rect.W, rect.H))
	}
	return boxes, skipped
}

// filter drops detections below minConfidence and normalizes their boxes.
// Boxes given in pixels are converted using the image size the model saw.
func (r *Result) filter(minConfidence float64, imgW, imgH int) {
	out := r.Objects[:0]
	for _, d := range r.Objects {
		if d.Confidence < minConfidence {
			continue
		}
		d.Box = normalizeRect(d.Box, imgW, imgH)
		out = append(out, d)
	}
	r.Objects = out
}

// normalizeRect converts pixel coordinates when any value exceeds 1 and
// clamps the result inside the unit square.
func normalizeRect(b Rect, imgW, imgH int) Rect {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = Rect{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}
	return clampRect(b)
}

func clampRect(b Rect) Rect {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return Rect{
		X: x,
		Y: y,
		W: clamp(b.X+b.W, 0, 1) - x,
		H: clamp(b.Y+b.H, 0, 1) - y,
	}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
