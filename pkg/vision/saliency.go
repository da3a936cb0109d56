package vision

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// SaliencyOptions configures the offline proposer
type SaliencyOptions struct {
	Label      string  // label given to every proposal
	WorkWidth  int     // images wider than this are downscaled before scoring
	Threshold  float64 // minimum mean saliency of a region
	MinRatio   float64 // minimum region area as a fraction of the image
	MaxRegions int
	Overlap    float64 // weaker regions overlapping a kept one by more than this IoU are dropped

	EdgeWeight     float64
	ContrastWeight float64
}

// DefaultSaliencyOptions returns the standard saliency settings
func DefaultSaliencyOptions() SaliencyOptions {
	return SaliencyOptions{
		Label:          "object",
		WorkWidth:      128,
		Threshold:      0.05,
		MinRatio:       0.01,
		MaxRegions:     5,
		Overlap:        0.3,
		EdgeWeight:     0.6,
		ContrastWeight: 0.4,
	}
}

// Saliency proposes high-contrast regions without a model
type Saliency struct {
	opts SaliencyOptions
}

// NewSaliency creates a saliency proposer
func NewSaliency(opts SaliencyOptions) *Saliency {
	def := DefaultSaliencyOptions()
	if opts.WorkWidth <= 0 {
		opts.WorkWidth = def.WorkWidth
	}
	if opts.MaxRegions <= 0 {
		opts.MaxRegions = def.MaxRegions
	}
	if opts.EdgeWeight == 0 && opts.ContrastWeight == 0 {
		opts.EdgeWeight, opts.ContrastWeight = def.EdgeWeight, def.ContrastWeight
	}
	return &Saliency{opts: opts}
}

type region struct {
	x, y, w, h int
	score      float64
}

func (r region) iou(o region) float64 {
	ix := max(0, min(r.x+r.w, o.x+o.w)-max(r.x, o.x))
	iy := max(0, min(r.y+r.h, o.y+o.h)-max(r.y, o.y))
	inter := float64(ix * iy)
	union := float64(r.w*r.h+o.w*o.h) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Propose returns the most salient regions of img, strongest first
func (s *Saliency) Propose(ctx context.Context, img image.Image) (*Result, error) {
	src := imaging.Clone(img)
	if src.Bounds().Dx() > s.opts.WorkWidth {
		src = imaging.Resize(src, s.opts.WorkWidth, 0, imaging.Box)
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w < 3 || h < 3 {
		return &Result{}, nil
	}

	sum := s.integralSaliency(src)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := s.scanWindows(sum, w, h)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	var kept []region
	for _, c := range candidates {
		if len(kept) == s.opts.MaxRegions {
			break
		}
		suppressed := false
		for _, k := range kept {
			if c.iou(k) > s.opts.Overlap {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}

	result := &Result{Objects: make([]Detection, 0, len(kept))}
	for _, k := range kept {
		result.Objects = append(result.Objects, Detection{
			Label:      s.opts.Label,
			Confidence: k.score / kept[0].score,
			Box: Rect{
				X: float64(k.x) / float64(w),
				Y: float64(k.y) / float64(h),
				W: float64(k.w) / float64(w),
				H: float64(k.h) / float64(h),
			},
		})
	}
	return result, nil
}

// integralSaliency scores every pixel by its color distance to its eight
// neighbours and its luminance distance to the image mean, returning the
// summed-area table of the scores.
func (s *Saliency) integralSaliency(img *image.NRGBA) [][]float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	lum := make([]float64, w*h)
	var mean float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(x, y)
			l := (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
			lum[y*w+x] = l
			mean += l
		}
	}
	mean /= float64(w * h)

	maxDist := math.Sqrt(3) * 255
	sum := make([][]float64, h+1)
	for i := range sum {
		sum[i] = make([]float64, w+1)
	}
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				c := img.NRGBAAt(x, y)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						n := img.NRGBAAt(x+dx, y+dy)
						dr := float64(c.R) - float64(n.R)
						dg := float64(c.G) - float64(n.G)
						db := float64(c.B) - float64(n.B)
						edge += math.Sqrt(dr*dr+dg*dg+db*db) / maxDist
					}
				}
				edge /= 8
			}
			contrast := math.Abs(lum[y*w+x] - mean)
			row += s.opts.EdgeWeight*edge + s.opts.ContrastWeight*contrast
			sum[y+1][x+1] = sum[y][x+1] + row
		}
	}
	return sum
}

// scanWindows slides square and 2:1 windows of several sizes over the map
func (s *Saliency) scanWindows(sum [][]float64, w, h int) []region {
	side := min(w, h)
	minArea := s.opts.MinRatio * float64(w*h)

	var out []region
	for _, div := range []int{8, 6, 4, 3, 2} {
		size := side / div
		if size < 4 {
			continue
		}
		step := max(1, size/4)
		for _, shape := range [][2]int{{size, size}, {2 * size, size}, {size, 2 * size}} {
			ww, wh := shape[0], shape[1]
			if ww > w || wh > h || float64(ww*wh) < minArea {
				continue
			}
			for y := 0; y+wh <= h; y += step {
				for x := 0; x+ww <= w; x += step {
					total := sum[y+wh][x+ww] - sum[y][x+ww] - sum[y+wh][x] + sum[y][x]
					score := total / float64(ww*wh)
					if score > s.opts.Threshold {
						out = append(out, region{x: x, y: y, w: ww, h: wh, score: score})
					}
				}
			}
		}
	}
	return out
}
