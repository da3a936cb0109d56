// Package classes manages the ordered list of label names shared by every
// image in a folder. A box's class id is the position of its name here.
package classes

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// FileName is the class list stored next to the images
const FileName = "classes.txt"

var (
	ErrInvalidID = errors.New("invalid class id")
	ErrEmptyName = errors.New("class name is empty")
)

// Registry is the ordered class list plus the currently selected class
type Registry struct {
	names   []string
	current int

	// Prompt is asked to create a class when drawing starts with an empty
	// registry. It returns the new name, or false to cancel.
	Prompt func() (string, bool)
}

// New creates a registry from names; blank names are dropped
func New(names ...string) *Registry {
	r := &Registry{current: -1}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			r.names = append(r.names, n)
		}
	}
	if len(r.names) > 0 {
		r.current = 0
	}
	return r
}

// Load reads a class file. Blank lines are dropped and ids are assigned by
// the order of the remaining lines. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read class file: %w", err)
	}

	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse class file: %w", err)
	}
	return New(names...), nil
}

// Reset replaces the class list, keeping the current selection when it is
// still in range. Blank names are dropped.
func (r *Registry) Reset(names []string) {
	fresh := New(names...)
	r.names = fresh.names
	switch {
	case len(r.names) == 0:
		r.current = -1
	case r.current < 0:
		r.current = 0
	case r.current >= len(r.names):
		r.current = len(r.names) - 1
	}
}

// PathIn returns the class file location for an image folder
func PathIn(dir string) string {
	return filepath.Join(dir, FileName)
}

// Save writes one name per line
func (r *Registry) Save(path string) error {
	var buf bytes.Buffer
	for _, n := range r.names {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write class file: %w", err)
	}
	return nil
}

// Names returns a copy of the class names in id order
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of classes
func (r *Registry) Len() int {
	return len(r.names)
}

// Name returns the class name, or a synthetic "Class N" label for ids
// outside the registry.
func (r *Registry) Name(id int) string {
	if id >= 0 && id < len(r.names) {
		return r.names[id]
	}
	return fmt.Sprintf("Class %d", id)
}

// Lookup finds a class id by name, ignoring case
func (r *Registry) Lookup(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, n := range r.names {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return -1, false
}

// Current returns the selected class id, or 0 when nothing is selected
func (r *Registry) Current() int {
	if r.current < 0 || r.current >= len(r.names) {
		return 0
	}
	return r.current
}

// SetCurrent selects a class
func (r *Registry) SetCurrent(id int) error {
	if id < 0 || id >= len(r.names) {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	r.current = id
	return nil
}

// EnsureClass reports whether at least one class exists, asking Prompt to
// create one otherwise.
func (r *Registry) EnsureClass() bool {
	if len(r.names) > 0 {
		return true
	}
	if r.Prompt == nil {
		return false
	}
	name, ok := r.Prompt()
	if !ok {
		return false
	}
	if _, err := r.Add(name); err != nil {
		return false
	}
	return len(r.names) > 0
}

// Add appends a class, selects it and returns its id
func (r *Registry) Add(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1, ErrEmptyName
	}
	r.names = append(r.names, name)
	r.current = len(r.names) - 1
	return r.current, nil
}

// Rename changes the name of a class; ids are unaffected
func (r *Registry) Rename(id int, name string) error {
	if id < 0 || id >= len(r.names) {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	r.names[id] = name
	return nil
}

// Delete removes a class and returns the old->new id mapping. The deleted id
// is absent from the mapping; later ids shift down by one.
func (r *Registry) Delete(id int) (map[int]int, error) {
	if id < 0 || id >= len(r.names) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	mapping := make(map[int]int, len(r.names)-1)
	names := make([]string, 0, len(r.names)-1)
	for old, n := range r.names {
		if old == id {
			continue
		}
		mapping[old] = len(names)
		names = append(names, n)
	}
	r.names = names

	switch {
	case len(r.names) == 0:
		r.current = -1
	case id < len(r.names):
		r.current = id
	default:
		r.current = len(r.names) - 1
	}
	return mapping, nil
}

// MoveUp swaps a class with its predecessor and returns the id mapping
func (r *Registry) MoveUp(id int) (map[int]int, error) {
	if id <= 0 || id >= len(r.names) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return r.swap(id, id-1), nil
}

// MoveDown swaps a class with its successor and returns the id mapping
func (r *Registry) MoveDown(id int) (map[int]int, error) {
	if id < 0 || id >= len(r.names)-1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return r.swap(id, id+1), nil
}

func (r *Registry) swap(a, b int) map[int]int {
	mapping := make(map[int]int, len(r.names))
	for i := range r.names {
		mapping[i] = i
	}
	mapping[a], mapping[b] = b, a
	r.names[a], r.names[b] = r.names[b], r.names[a]
	r.current = b
	return mapping
}

// Entries formats the list as "id: name" lines
func (r *Registry) Entries() []string {
	out := make([]string, len(r.names))
	for i, n := range r.names {
		out[i] = fmt.Sprintf("%d: %s", i, n)
	}
	return out
}

// Color returns the display color of a class. It depends only on the id:
// hues are spaced by the golden angle so neighbouring ids stay distinct.
func (r *Registry) Color(id int) color.Color {
	return ColorFor(id)
}

// ColorFor is the color scheme used by Registry.Color
func ColorFor(id int) color.RGBA {
	const goldenAngle = 137.50776405003785
	hue := math.Mod(float64(id)*goldenAngle, 360)
	if hue < 0 {
		hue += 360
	}
	c := colorful.Hsv(hue, 0.85, 0.95).Clamped()
	cr, cg, cb := c.RGB255()
	return color.RGBA{R: cr, G: cg, B: cb, A: 255}
}
