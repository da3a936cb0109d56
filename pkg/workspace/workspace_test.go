package workspace

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/menta2k/yolo-labeler/pkg/annotation"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/classes"
	"github.com/menta2k/yolo-labeler/pkg/geometry"
	"github.com/menta2k/yolo-labeler/pkg/imageio"
	"github.com/menta2k/yolo-labeler/pkg/vision"
)

// createTestImage creates a small gradient image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imageio.Save(createTestImage(100, 100), path, imageio.DefaultSaveOptions()); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

type recorder struct {
	errors []error
	status []string
}

func (r *recorder) Error(err error)   { r.errors = append(r.errors, err) }
func (r *recorder) Status(msg string) { r.status = append(r.status, msg) }

func openTest(t *testing.T, dir string) (*Workspace, *recorder) {
	t.Helper()
	rec := &recorder{}
	w, err := Open(dir, Options{Reporter: rec})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return w, rec
}

func box(class int, cx, cy float64) annotation.Box {
	return annotation.Box{ClassID: class, Cx: cx, Cy: cy, W: 0.2, H: 0.2}
}

func TestScanFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "b.png")
	writeImage(t, dir, "a.PNG")
	writeImage(t, dir, "c.jpg")
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, rec := openTest(t, dir)
	var names []string
	for _, p := range w.Images() {
		names = append(names, filepath.Base(p))
	}
	if !reflect.DeepEqual(names, []string{"a.PNG", "b.png", "c.jpg"}) {
		t.Errorf("Unexpected images %v", names)
	}
	if len(rec.status) == 0 || rec.status[0] != "loaded 3 images" {
		t.Errorf("Unexpected status %v", rec.status)
	}
	if w.Index() != -1 {
		t.Errorf("Expected no image open, got %d", w.Index())
	}
}

func TestOpenMissingFolder(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Error("Expected error for missing folder")
	}
}

func TestEmptyFolderNavigation(t *testing.T) {
	w, _ := openTest(t, t.TempDir())
	if err := w.Next(); !errors.Is(err, ErrNoImages) {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
	if err := w.Save(); !errors.Is(err, ErrNoImageOpen) {
		t.Errorf("Expected ErrNoImageOpen, got %v", err)
	}
}

func TestOpenImageLoadsAnnotations(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, dir, "a.png")
	writeFile(t, annotation.PathFor(img), "0 0.5 0.5 0.2 0.2\n1 0.3 0.3 0.1 0.1\n")

	w, rec := openTest(t, dir)
	if err := w.OpenImage(0); err != nil {
		t.Fatalf("OpenImage() error: %v", err)
	}
	if w.Engine().Len() != 2 {
		t.Errorf("Expected 2 boxes, got %d", w.Engine().Len())
	}
	if size := w.Engine().ImageSize(); size != (geometry.Size{W: 100, H: 100}) {
		t.Errorf("Unexpected image size %+v", size)
	}
	if rec.status[len(rec.status)-1] != "current image: a.png" {
		t.Errorf("Unexpected status %v", rec.status)
	}
	if cur, ok := w.Current(); !ok || cur != img {
		t.Errorf("Expected current %s, got %s", img, cur)
	}
}

func TestNavigationBounds(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")
	writeImage(t, dir, "b.png")

	w, _ := openTest(t, dir)
	if err := w.Prev(); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange before first image, got %v", err)
	}
	if err := w.Next(); err != nil || w.Index() != 0 {
		t.Fatalf("Next() = %v, index %d", err, w.Index())
	}
	if err := w.Next(); err != nil || w.Index() != 1 {
		t.Fatalf("Next() = %v, index %d", err, w.Index())
	}
	if err := w.Next(); !errors.Is(err, ErrIndexOutOfRange) || w.Index() != 1 {
		t.Errorf("Expected ErrIndexOutOfRange at the end, got %v index %d", err, w.Index())
	}
	if err := w.Prev(); err != nil || w.Index() != 0 {
		t.Errorf("Prev() = %v, index %d", err, w.Index())
	}
}

func TestSwitchingFlushesAnnotations(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	writeImage(t, dir, "b.png")

	w, _ := openTest(t, dir)
	w.OpenImage(0)
	w.Engine().AddBoxes(box(0, 0.5, 0.5))
	if err := w.Next(); err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if got := readFile(t, annotation.PathFor(a)); got != "0 0.500000 0.500000 0.200000 0.200000\n" {
		t.Errorf("Unexpected annotation file %q", got)
	}

	// emptying the store deletes the file
	w.Prev()
	w.Engine().DeleteBox(0)
	if err := w.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(annotation.PathFor(a)); !os.IsNotExist(err) {
		t.Errorf("Expected annotation file removed, stat error %v", err)
	}
}

func TestMalformedAnnotationsReported(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	writeImage(t, dir, "b.png")
	bad := "0 x 0.5 0.5 0.5\n"
	writeFile(t, annotation.PathFor(a), bad)

	w, rec := openTest(t, dir)
	if err := w.OpenImage(0); err != nil {
		t.Fatalf("OpenImage() should succeed, got %v", err)
	}
	if len(rec.errors) != 1 || !errors.Is(rec.errors[0], annotation.ErrMalformedLine) {
		t.Errorf("Expected malformed line reported, got %v", rec.errors)
	}
	if w.Engine().Len() != 0 {
		t.Errorf("Expected empty store, got %d boxes", w.Engine().Len())
	}

	if err := w.Next(); err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if got := readFile(t, annotation.PathFor(a)); got != bad {
		t.Errorf("Unedited malformed file should be left alone, got %q", got)
	}
}

func TestImageLoadFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")
	writeFile(t, filepath.Join(dir, "b.png"), "not an image")

	w, _ := openTest(t, dir)
	w.OpenImage(0)
	w.Engine().AddBoxes(box(0, 0.5, 0.5))

	if err := w.OpenImage(1); err == nil {
		t.Fatal("Expected error for corrupt image")
	}
	if w.Index() != 0 || w.Engine().Len() != 1 {
		t.Errorf("Expected session unchanged, got index %d with %d boxes", w.Index(), w.Engine().Len())
	}
}

func TestWriteFailureKeepsStore(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	writeImage(t, dir, "b.png")

	w, _ := openTest(t, dir)
	w.OpenImage(0)
	// a directory in place of the annotation file makes the write fail
	if err := os.Mkdir(annotation.PathFor(a), 0o755); err != nil {
		t.Fatal(err)
	}
	w.Engine().AddBoxes(box(0, 0.5, 0.5))

	if err := w.Next(); err == nil {
		t.Fatal("Expected write error")
	}
	if w.Index() != 0 || w.Engine().Len() != 1 {
		t.Errorf("Expected store retained, got index %d with %d boxes", w.Index(), w.Engine().Len())
	}

	os.Remove(annotation.PathFor(a))
	if err := w.Next(); err != nil {
		t.Errorf("Retry should succeed, got %v", err)
	}
}

func TestDeleteClassRemapsFolder(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	b := writeImage(t, dir, "b.png")
	c := writeImage(t, dir, "c.png")
	writeFile(t, classes.PathIn(dir), "car\nperson\ndog\n")
	writeFile(t, annotation.PathFor(a), "0 0.1 0.1 0.1 0.1\n1 0.2 0.2 0.1 0.1\n2 0.3 0.3 0.1 0.1\n")
	writeFile(t, annotation.PathFor(c), "1 0.5 0.5 0.1 0.1\n")

	w, _ := openTest(t, dir)
	w.OpenImage(1)
	w.Engine().AddBoxes(box(1, 0.5, 0.5), box(2, 0.4, 0.4))

	if err := w.DeleteClass(1); err != nil {
		t.Fatalf("DeleteClass() error: %v", err)
	}

	want := "0 0.100000 0.100000 0.100000 0.100000\n1 0.300000 0.300000 0.100000 0.100000\n"
	if got := readFile(t, annotation.PathFor(a)); got != want {
		t.Errorf("Unexpected remapped file:\n%s", got)
	}
	if _, err := os.Stat(annotation.PathFor(c)); !os.IsNotExist(err) {
		t.Errorf("File left without boxes should be removed, stat error %v", err)
	}
	boxes := w.Engine().Boxes()
	if len(boxes) != 1 || boxes[0].ClassID != 1 {
		t.Errorf("Unexpected in-memory boxes %+v", boxes)
	}
	if got := readFile(t, annotation.PathFor(b)); !strings.HasPrefix(got, "1 0.400000") {
		t.Errorf("Open image should be saved, got %q", got)
	}
	if got := readFile(t, classes.PathIn(dir)); got != "car\ndog\n" {
		t.Errorf("Unexpected classes file %q", got)
	}
}

func TestMoveClassSwapsIDs(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	writeImage(t, dir, "b.png")
	writeFile(t, classes.PathIn(dir), "car\nperson\n")
	writeFile(t, annotation.PathFor(a), "0 0.1 0.1 0.1 0.1\n1 0.2 0.2 0.1 0.1\n")

	w, _ := openTest(t, dir)
	if err := w.MoveClassUp(1); err != nil {
		t.Fatalf("MoveClassUp() error: %v", err)
	}
	boxes, err := w.Annotations(0)
	if err != nil {
		t.Fatal(err)
	}
	if boxes[0].ClassID != 1 || boxes[1].ClassID != 0 {
		t.Errorf("Expected swapped ids, got %+v", boxes)
	}
	if got := readFile(t, classes.PathIn(dir)); got != "person\ncar\n" {
		t.Errorf("Unexpected classes file %q", got)
	}

	if err := w.MoveClassDown(1); !errors.Is(err, classes.ErrInvalidID) {
		t.Errorf("Expected ErrInvalidID moving the last class down, got %v", err)
	}
}

func TestAddAndRenameClassSave(t *testing.T) {
	dir := t.TempDir()
	w, _ := openTest(t, dir)

	id, err := w.AddClass("car")
	if err != nil || id != 0 {
		t.Fatalf("AddClass() = %d, %v", id, err)
	}
	if err := w.RenameClass(0, "truck"); err != nil {
		t.Fatalf("RenameClass() error: %v", err)
	}
	if got := readFile(t, classes.PathIn(dir)); got != "truck\n" {
		t.Errorf("Unexpected classes file %q", got)
	}
	if _, err := w.AddClass("  "); !errors.Is(err, classes.ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}
}

func TestDrawPromptsForFirstClass(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")

	w, _ := openTest(t, dir)
	w.Classes().Prompt = func() (string, bool) { return "dog", true }
	w.OpenImage(0)
	e := w.Engine()
	e.Resize(geometry.Size{W: 100, H: 100})

	e.PointerDown(image.Pt(10, 10), canvas.ButtonPrimary)
	e.PointerMove(image.Pt(50, 50))
	e.PointerUp(image.Pt(50, 50))

	if e.Len() != 1 {
		t.Fatalf("Expected drawn box, got %d", e.Len())
	}
	if got := readFile(t, classes.PathIn(dir)); got != "dog\n" {
		t.Errorf("Expected prompted class saved, got %q", got)
	}
	if lines := w.Describe(); len(lines) != 1 || !strings.HasPrefix(lines[0], "1. dog (") {
		t.Errorf("Unexpected description %v", lines)
	}
}

func TestExportAllAndClose(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	writeFile(t, classes.PathIn(dir), "car\n")

	w, _ := openTest(t, dir)
	w.OpenImage(0)
	w.Engine().AddBoxes(box(0, 0.5, 0.5))
	if err := w.ExportAll(); err != nil {
		t.Fatalf("ExportAll() error: %v", err)
	}
	if _, err := os.Stat(annotation.PathFor(a)); err != nil {
		t.Errorf("Expected annotation file, got %v", err)
	}

	w.Engine().AddBoxes(box(0, 0.2, 0.2))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if w.Index() != -1 || w.Engine().HasImage() {
		t.Error("Expected no image open after Close")
	}
	boxes, _ := annotation.LoadFile(annotation.PathFor(a))
	if len(boxes) != 2 {
		t.Errorf("Expected 2 boxes flushed on close, got %d", len(boxes))
	}
}

func TestReloadClasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, classes.PathIn(dir), "car\n")
	w, _ := openTest(t, dir)

	changed, err := w.ReloadClasses()
	if err != nil || changed {
		t.Errorf("Expected no change, got %v %v", changed, err)
	}
	writeFile(t, classes.PathIn(dir), "car\nbus\n")
	changed, err = w.ReloadClasses()
	if err != nil || !changed {
		t.Errorf("Expected change, got %v %v", changed, err)
	}
	if w.Classes().Name(1) != "bus" {
		t.Errorf("Unexpected classes %v", w.Classes().Names())
	}
}

func TestWatchClasses(t *testing.T) {
	dir := t.TempDir()
	w, _ := openTest(t, dir)
	if w.ClassChanges() != nil {
		t.Error("Expected nil channel before watching")
	}
	if err := w.WatchClasses(20 * time.Millisecond); err != nil {
		t.Fatalf("WatchClasses() error: %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "other.txt"), "x")
	writeFile(t, classes.PathIn(dir), "car\n")

	select {
	case <-w.ClassChanges():
	case <-time.After(5 * time.Second):
		t.Fatal("Expected class file change signal")
	}
	if changed, err := w.ReloadClasses(); err != nil || !changed {
		t.Errorf("Expected reload to pick up the edit, got %v %v", changed, err)
	}
}

type fakeProposer struct {
	res *vision.Result
	err error
}

func (f fakeProposer) Propose(ctx context.Context, img image.Image) (*vision.Result, error) {
	return f.res, f.err
}

func TestSuggest(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")
	writeFile(t, classes.PathIn(dir), "car\n")
	p := fakeProposer{res: &vision.Result{Objects: []vision.Detection{
		{Label: "car", Confidence: 0.9, Box: vision.Rect{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}},
		{Label: "cat", Confidence: 0.8, Box: vision.Rect{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}},
	}}}

	w, _ := openTest(t, dir)
	if _, err := w.Suggest(context.Background(), p, SuggestOptions{}); !errors.Is(err, ErrNoImageOpen) {
		t.Errorf("Expected ErrNoImageOpen, got %v", err)
	}
	w.OpenImage(0)

	n, err := w.Suggest(context.Background(), p, SuggestOptions{})
	if err != nil || n != 1 {
		t.Fatalf("Suggest() = %d, %v", n, err)
	}

	n, err = w.Suggest(context.Background(), p, SuggestOptions{CreateClasses: true})
	if err != nil || n != 2 {
		t.Fatalf("Suggest() with class creation = %d, %v", n, err)
	}
	if got := readFile(t, classes.PathIn(dir)); got != "car\ncat\n" {
		t.Errorf("Expected new class saved, got %q", got)
	}
	if w.Classes().Current() != 0 {
		t.Errorf("Class selection should be kept, got %d", w.Classes().Current())
	}
	boxes := w.Engine().Boxes()
	if len(boxes) != 3 || boxes[2].ClassID != 1 {
		t.Errorf("Unexpected boxes %+v", boxes)
	}

	boom := errors.New("model offline")
	if _, err := w.Suggest(context.Background(), fakeProposer{err: boom}, SuggestOptions{}); !errors.Is(err, boom) {
		t.Errorf("Expected proposer error, got %v", err)
	}
}
