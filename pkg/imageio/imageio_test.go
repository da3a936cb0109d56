package imageio

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/yolo-labeler/pkg/geometry"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"B.JPEG", true},
		{"c.Png", true},
		{"d.bmp", true},
		{"e.TIFF", true},
		{"f.gif", false},
		{"g.webp", false},
		{"h.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsImageFile(tt.name); got != tt.want {
			t.Errorf("IsImageFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSaveLoadFormats(t *testing.T) {
	dir := t.TempDir()
	img := createTestImage(64, 48)

	for _, name := range []string{"a.png", "b.jpg", "c.webp"} {
		path := filepath.Join(dir, name)
		if err := Save(img, path, DefaultSaveOptions()); err != nil {
			t.Fatalf("Save(%s) error: %v", name, err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) error: %v", name, err)
		}
		if got := SizeOf(loaded); got != (geometry.Size{W: 64, H: 48}) {
			t.Errorf("%s: expected 64x48, got %v", name, got)
		}

		size, err := Size(path)
		if err != nil {
			t.Fatalf("Size(%s) error: %v", name, err)
		}
		if size != (geometry.Size{W: 64, H: 48}) {
			t.Errorf("%s: expected size 64x48, got %v", name, size)
		}
	}
}

func TestSaveUnsupported(t *testing.T) {
	err := Save(createTestImage(4, 4), filepath.Join(t.TempDir(), "x.gif"), DefaultSaveOptions())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}

	junk := filepath.Join(dir, "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(junk); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Size(junk); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat from Size, got %v", err)
	}
}

func TestEncodeBase64Resizes(t *testing.T) {
	img := createTestImage(400, 200)
	enc, err := EncodeBase64(img, "png", 100, 0)
	if err != nil {
		t.Fatalf("EncodeBase64() error: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got := SizeOf(decoded); got != (geometry.Size{W: 100, H: 50}) {
		t.Errorf("Expected 100x50, got %v", got)
	}
}

func TestFit(t *testing.T) {
	scaled, tr, ok := Fit(createTestImage(800, 600), geometry.Size{W: 400, H: 400})
	if !ok {
		t.Fatal("Fit() failed")
	}
	if got := SizeOf(scaled); got != (geometry.Size{W: 400, H: 300}) {
		t.Errorf("Expected 400x300, got %v", got)
	}
	if tr.Scale != 0.5 || tr.OffsetY != 50 {
		t.Errorf("Unexpected transform %+v", tr)
	}

	if _, _, ok := Fit(createTestImage(10, 10), geometry.Size{}); ok {
		t.Error("Fit() into an empty viewport should fail")
	}
}
