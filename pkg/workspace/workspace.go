// Package workspace owns an editing session over one image folder: the
// folder scan, the class registry stored next to the images, the canvas
// engine of the open image and the on-disk annotation files.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/menta2k/yolo-labeler/internal/logger"
	"github.com/menta2k/yolo-labeler/pkg/annotation"
	"github.com/menta2k/yolo-labeler/pkg/canvas"
	"github.com/menta2k/yolo-labeler/pkg/classes"
	"github.com/menta2k/yolo-labeler/pkg/imageio"
	"github.com/menta2k/yolo-labeler/pkg/vision"
)

var (
	ErrNoImages        = errors.New("no images in folder")
	ErrIndexOutOfRange = errors.New("image index out of range")
	ErrNoImageOpen     = errors.New("no image open")
)

// Reporter receives user-facing messages. Errors passed here are non-fatal.
type Reporter interface {
	Error(err error)
	Status(msg string)
}

type logReporter struct {
	log *logger.Logger
}

func (r logReporter) Error(err error)   { r.log.Error("%v", err) }
func (r logReporter) Status(msg string) { r.log.Info("%s", msg) }

// Options configures a workspace
type Options struct {
	Canvas   canvas.Config
	Logger   *logger.Logger
	Reporter Reporter // defaults to the logger
}

// Workspace is one folder being labelled
type Workspace struct {
	dir      string
	images   []string
	index    int
	image    image.Image
	registry *classes.Registry
	engine   *canvas.Engine
	watcher  *ClassWatcher

	// protect is set when the open image's annotation file failed to parse.
	// An empty store is then not written back, leaving the file untouched.
	protect bool

	log      *logger.Logger
	reporter Reporter
	onChange func()
}

// Open scans dir for images and loads its class list. A folder without
// images opens fine; navigation then returns ErrNoImages.
func Open(dir string, opts Options) (*Workspace, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to open folder: %s is not a directory", dir)
	}

	images, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	registry, err := classes.Load(classes.PathIn(dir))
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Reporter == nil {
		opts.Reporter = logReporter{log: opts.Logger}
	}
	if opts.Canvas == (canvas.Config{}) {
		opts.Canvas = canvas.DefaultConfig()
	}

	w := &Workspace{
		dir:      dir,
		images:   images,
		index:    -1,
		registry: registry,
		log:      opts.Logger,
		reporter: opts.Reporter,
	}
	w.engine = canvas.New(opts.Canvas, classSource{w})
	w.engine.OnChange(w.notify)

	w.log.Debug("opened %s: %d images, %d classes", dir, len(images), registry.Len())
	w.reporter.Status(fmt.Sprintf("loaded %d images", len(images)))
	return w, nil
}

// Scan lists the images directly inside dir, sorted by path
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() || !imageio.IsImageFile(e.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}
	sort.Strings(images)
	return images, nil
}

// classSource saves the class list when the registry prompt creates the
// first class during a draw.
type classSource struct {
	w *Workspace
}

func (c classSource) Len() int     { return c.w.registry.Len() }
func (c classSource) Current() int { return c.w.registry.Current() }

func (c classSource) EnsureClass() bool {
	before := c.w.registry.Len()
	ok := c.w.registry.EnsureClass()
	if c.w.registry.Len() != before {
		if err := c.w.SaveClasses(); err != nil {
			c.w.reporter.Error(err)
		}
	}
	return ok
}

func (w *Workspace) notify() {
	if w.onChange != nil {
		w.onChange()
	}
}

// OnChange registers a callback for any change the view must reflect
func (w *Workspace) OnChange(fn func()) {
	w.onChange = fn
}

// Dir returns the folder being labelled
func (w *Workspace) Dir() string { return w.dir }

// Images returns the image paths in navigation order
func (w *Workspace) Images() []string {
	out := make([]string, len(w.images))
	copy(out, w.images)
	return out
}

// Len returns the number of images
func (w *Workspace) Len() int { return len(w.images) }

// Index returns the open image index, or -1
func (w *Workspace) Index() int { return w.index }

// Current returns the path of the open image
func (w *Workspace) Current() (string, bool) {
	if w.index < 0 {
		return "", false
	}
	return w.images[w.index], true
}

// Image returns the decoded open image
func (w *Workspace) Image() image.Image { return w.image }

// Engine returns the canvas engine editing the open image
func (w *Workspace) Engine() *canvas.Engine { return w.engine }

// Classes returns the class registry of the folder
func (w *Workspace) Classes() *classes.Registry { return w.registry }

// OpenImage switches to image i. The current annotations are written first;
// if that fails nothing is discarded and the switch is abandoned. An image
// that cannot be decoded leaves the session unchanged. Unreadable
// annotations are reported and the image opens with no boxes.
func (w *Workspace) OpenImage(i int) error {
	if len(w.images) == 0 {
		return ErrNoImages
	}
	if i < 0 || i >= len(w.images) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	if err := w.flush(); err != nil {
		return err
	}

	path := w.images[i]
	img, err := imageio.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", filepath.Base(path), err)
	}

	protect := false
	boxes, err := annotation.LoadFile(annotation.PathFor(path))
	if err != nil {
		w.reporter.Error(fmt.Errorf("failed to load annotations for %s: %w", filepath.Base(path), err))
		boxes = nil
		protect = true
	}

	w.index = i
	w.image = img
	w.protect = protect
	w.engine.SetImage(imageio.SizeOf(img), boxes)
	w.log.Debug("opened %s with %d boxes", path, len(boxes))
	w.reporter.Status("current image: " + filepath.Base(path))
	return nil
}

// Next opens the following image
func (w *Workspace) Next() error {
	return w.OpenImage(w.index + 1)
}

// Prev opens the preceding image
func (w *Workspace) Prev() error {
	if w.index <= 0 {
		if len(w.images) == 0 {
			return ErrNoImages
		}
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, w.index-1)
	}
	return w.OpenImage(w.index - 1)
}

// Save writes the annotations of the open image
func (w *Workspace) Save() error {
	if w.index < 0 {
		return ErrNoImageOpen
	}
	if err := w.flush(); err != nil {
		return err
	}
	w.reporter.Status("saved " + filepath.Base(annotation.PathFor(w.images[w.index])))
	return nil
}

func (w *Workspace) flush() error {
	if w.index < 0 {
		return nil
	}
	if w.protect && w.engine.Len() == 0 {
		return nil
	}
	path := annotation.PathFor(w.images[w.index])
	if err := annotation.SaveFile(path, w.engine.Boxes()); err != nil {
		return fmt.Errorf("failed to save annotations for %s: %w", filepath.Base(w.images[w.index]), err)
	}
	w.protect = false
	return nil
}

// SaveClasses writes classes.txt
func (w *Workspace) SaveClasses() error {
	return w.registry.Save(classes.PathIn(w.dir))
}

// ExportAll saves the open image's annotations and the class list
func (w *Workspace) ExportAll() error {
	var errs []error
	if w.index >= 0 {
		errs = append(errs, w.flush())
	}
	errs = append(errs, w.SaveClasses())
	if err := errors.Join(errs...); err != nil {
		return err
	}
	w.reporter.Status("exported annotations and classes")
	return nil
}

// Close writes pending annotations and stops watching the class file
func (w *Workspace) Close() error {
	var errs []error
	errs = append(errs, w.flush())
	if w.watcher != nil {
		errs = append(errs, w.watcher.Close())
		w.watcher = nil
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	w.index = -1
	w.image = nil
	w.protect = false
	w.engine.ClearImage()
	return nil
}

// Annotations returns the boxes of image i, from memory for the open image
// and from disk otherwise.
func (w *Workspace) Annotations(i int) ([]annotation.Box, error) {
	if i < 0 || i >= len(w.images) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	if i == w.index {
		return w.engine.Boxes(), nil
	}
	return annotation.LoadFile(annotation.PathFor(w.images[i]))
}

// Describe returns the annotation list lines of the open image
func (w *Workspace) Describe() []string {
	return w.engine.Describe(w.registry)
}

// AddClass appends a class and selects it
func (w *Workspace) AddClass(name string) (int, error) {
	id, err := w.registry.Add(name)
	if err != nil {
		return -1, err
	}
	if err := w.SaveClasses(); err != nil {
		return id, err
	}
	w.notify()
	return id, nil
}

// RenameClass renames a class; no annotation changes
func (w *Workspace) RenameClass(id int, name string) error {
	if err := w.registry.Rename(id, name); err != nil {
		return err
	}
	if err := w.SaveClasses(); err != nil {
		return err
	}
	w.notify()
	return nil
}

// DeleteClass removes a class. Boxes of that class are deleted and later
// ids shift down, in memory and in every annotation file of the folder.
func (w *Workspace) DeleteClass(id int) error {
	mapping, err := w.registry.Delete(id)
	if err != nil {
		return err
	}
	return w.applyMapping(mapping)
}

// MoveClassUp swaps a class with its predecessor across the folder
func (w *Workspace) MoveClassUp(id int) error {
	mapping, err := w.registry.MoveUp(id)
	if err != nil {
		return err
	}
	return w.applyMapping(mapping)
}

// MoveClassDown swaps a class with its successor across the folder
func (w *Workspace) MoveClassDown(id int) error {
	mapping, err := w.registry.MoveDown(id)
	if err != nil {
		return err
	}
	return w.applyMapping(mapping)
}

// applyMapping rewrites class ids of the open store and of every other
// image's annotation file, then saves the open image and the class list.
// Every file is attempted; failures are joined.
func (w *Workspace) applyMapping(mapping map[int]int) error {
	var errs []error
	dropped := 0
	if w.index >= 0 {
		dropped += w.engine.Remap(mapping)
	}
	for i, img := range w.images {
		if i == w.index {
			continue
		}
		n, err := annotation.RemapFile(annotation.PathFor(img), mapping)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to remap %s: %w", filepath.Base(img), err))
			continue
		}
		dropped += n
	}
	errs = append(errs, w.flush(), w.SaveClasses())

	w.log.Debug("class remap %v dropped %d boxes", mapping, dropped)
	if dropped > 0 {
		w.reporter.Status(fmt.Sprintf("removed %d boxes", dropped))
	}
	return errors.Join(errs...)
}

// ReloadClasses rereads classes.txt after an external edit. It reports
// whether the names changed.
func (w *Workspace) ReloadClasses() (bool, error) {
	fresh, err := classes.Load(classes.PathIn(w.dir))
	if err != nil {
		return false, err
	}
	names := fresh.Names()
	old := w.registry.Names()
	if equalNames(old, names) {
		return false, nil
	}
	w.registry.Reset(names)
	w.log.Debug("reloaded %d classes", len(names))
	w.notify()
	return true, nil
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SuggestOptions controls how proposed boxes get their class
type SuggestOptions struct {
	// CreateClasses adds labels that are not in the registry yet
	CreateClasses bool
	// UseCurrentClass assigns every proposal to the selected class
	UseCurrentClass bool
}

// Suggest asks p for boxes on the open image and appends them. It returns
// the number of boxes added.
func (w *Workspace) Suggest(ctx context.Context, p vision.Proposer, opts SuggestOptions) (int, error) {
	if w.index < 0 || w.image == nil {
		return 0, ErrNoImageOpen
	}
	res, err := p.Propose(ctx, w.image)
	if err != nil {
		return 0, fmt.Errorf("failed to get suggestions: %w", err)
	}
	return w.ApplySuggestions(res, opts)
}

// ApplySuggestions appends the proposals of res to the open image, resolving
// labels to class ids as Suggest does.
func (w *Workspace) ApplySuggestions(res *vision.Result, opts SuggestOptions) (int, error) {
	if w.index < 0 {
		return 0, ErrNoImageOpen
	}
	if res == nil {
		return 0, nil
	}

	current := w.registry.Current()
	created := false
	resolve := func(label string) (int, bool) {
		if opts.UseCurrentClass {
			return current, w.registry.Len() > 0
		}
		if id, ok := w.registry.Lookup(label); ok {
			return id, true
		}
		if !opts.CreateClasses {
			return -1, false
		}
		id, err := w.registry.Add(label)
		if err != nil {
			return -1, false
		}
		created = true
		return id, true
	}

	boxes, skipped := res.Boxes(resolve)
	for _, d := range skipped {
		w.log.Debug("skipped suggestion %q (%.2f)", d.Label, d.Confidence)
	}
	if created {
		if w.registry.Len() > 0 {
			w.registry.SetCurrent(current)
		}
		if err := w.SaveClasses(); err != nil {
			return 0, err
		}
	}

	w.engine.AddBoxes(boxes...)
	w.reporter.Status(fmt.Sprintf("added %d suggested boxes", len(boxes)))
	return len(boxes), nil
}
