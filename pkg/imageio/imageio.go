// Package imageio loads dataset images, reads their dimensions and writes
// rendered previews.
package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/yolo-labeler/pkg/geometry"
)

// Extensions are the image extensions picked up by a folder scan
var Extensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}

// ErrUnsupportedFormat is returned for files that cannot be decoded or encoded
var ErrUnsupportedFormat = errors.New("unsupported image format")

// IsImageFile reports whether name has one of the scanned extensions
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load decodes the image at path
func Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// imaging only knows the registered decoders; retry WebP explicitly
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
		}
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, path, err)
	}
	return img, nil
}

// Decode decodes an image held in memory
func Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, ErrUnsupportedFormat
}

// Size reads the pixel dimensions of the image at path without decoding it
func Size(path string) (geometry.Size, error) {
	f, err := os.Open(path)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return geometry.Size{}, fmt.Errorf("failed to rewind %s: %w", path, serr)
		}
		if cfg, err = webp.DecodeConfig(f); err != nil {
			return geometry.Size{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
	}
	return geometry.Size{W: cfg.Width, H: cfg.Height}, nil
}

// SizeOf returns the dimensions of a decoded image
func SizeOf(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.Size{W: b.Dx(), H: b.Dy()}
}

// SaveOptions controls encoding of written images
type SaveOptions struct {
	Quality  int  // JPEG and lossy WebP quality, 1-100
	Lossless bool // WebP only
}

// DefaultSaveOptions returns the options used when none are given
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{Quality: 90}
}

// Save writes img to path, choosing the encoder from the extension
func Save(img image.Image, path string, opts SaveOptions) error {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultSaveOptions().Quality
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		return webp.Encode(f, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)})
	case ".png":
		return imaging.Save(img, path)
	case ".jpg", ".jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(opts.Quality))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// EncodeBase64 shrinks img so its longer side is at most maxDim and returns
// it base64-encoded as JPEG or PNG, ready for a vision model request.
func EncodeBase64(img image.Image, format string, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultSaveOptions().Quality
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Fit scales img to fit inside the viewport the same way the canvas does,
// returning the scaled image and the transform that placed it.
func Fit(img image.Image, viewport geometry.Size) (image.Image, geometry.Transform, bool) {
	size := SizeOf(img)
	t, ok := geometry.Fit(size, viewport)
	if !ok {
		return nil, geometry.Transform{}, false
	}
	r := t.ImageRect(size)
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, geometry.Transform{}, false
	}
	return imaging.Resize(img, r.Dx(), r.Dy(), imaging.Linear), t, true
}
