package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/yolo-labeler/pkg/imageio"
)

// Client sends one prompt with one image to a vision model and returns the
// raw text answer.
type Client interface {
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

// ErrInvalidResponse is returned when the model answer holds no usable JSON
var ErrInvalidResponse = errors.New("model returned no usable JSON")

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

const promptTemplate = `You are an object detector preparing training labels.

Return JSON only:
{
  "objects": [
    {"label": "string", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence"
}

HARD RULES
- Each box tightly encloses ONE object instance; report every instance separately.
- x, y is the TOP-LEFT corner and w, h the size, all normalized to [0,1] (NOT pixels).
- Labels are lowercase nouns.
%s- If nothing is found, return {"objects": [], "description": "no objects"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// BuildPrompt returns the detection prompt, restricted to labels when given
func BuildPrompt(labels []string) string {
	restrict := ""
	if len(labels) > 0 {
		restrict = fmt.Sprintf("- Only use these labels: %s. Skip objects of any other kind.\n", strings.Join(labels, ", "))
	}
	return fmt.Sprintf(promptTemplate, restrict)
}

// Options configures a model-backed Detector
type Options struct {
	Model         string
	Labels        []string // restricts the labels the model may use
	MinConfidence float64
	MaxDimension  int // longer image side sent to the model
	Quality       int // JPEG quality of the image sent to the model
}

// Detector proposes objects by asking a vision model
type Detector struct {
	client Client
	opts   Options
}

// NewDetector creates a new detector with a vision client
func NewDetector(client Client, opts Options) *Detector {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 1024
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	return &Detector{client: client, opts: opts}
}

// Propose asks the model for every object in img
func (d *Detector) Propose(ctx context.Context, img image.Image) (*Result, error) {
	imgB64, err := imageio.EncodeBase64(img, "jpeg", d.opts.MaxDimension, d.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	raw, err := d.client.Query(ctx, d.opts.Model, BuildPrompt(d.opts.Labels), imgB64)
	if err != nil {
		return nil, err
	}

	result, err := ParseResult(raw)
	if err != nil {
		return nil, err
	}
	w, h := sentSize(img, d.opts.MaxDimension)
	result.filter(d.opts.MinConfidence, w, h)
	for i := range result.Objects {
		result.Objects[i].Label = strings.ToLower(strings.TrimSpace(result.Objects[i].Label))
	}
	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := imageio.EncodeBase64(img, "jpeg", d.opts.MaxDimension, d.opts.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return d.client.Query(ctx, d.opts.Model, SimpleTestPrompt, imgB64)
}

// sentSize returns the dimensions of img after downscaling to maxDim
func sentSize(img image.Image, maxDim int) (int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, h * maxDim / w
	}
	return w * maxDim / h, maxDim
}

// ParseResult decodes a model answer. Both an object with an "objects" list
// and a bare list of detections are accepted.
func ParseResult(raw string) (*Result, error) {
	raw = sanitizeModelJSON(raw)

	var result Result
	switch {
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &result.Objects); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	case strings.HasPrefix(raw, "{"):
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	default:
		return nil, ErrInvalidResponse
	}
	return &result, nil
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...} or [...], whichever opens first
	first, last := "{", "}"
	if a := strings.Index(raw, "["); a >= 0 {
		if o := strings.Index(raw, "{"); o < 0 || a < o {
			first, last = "[", "]"
		}
	}
	if start := strings.Index(raw, first); start >= 0 {
		if end := strings.LastIndex(raw, last); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
