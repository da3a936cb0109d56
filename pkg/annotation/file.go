package annotation

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Extension is the suffix of per-image annotation files
const Extension = ".txt"

// ErrMalformedLine is wrapped by ParseError for lines with non-numeric or
// non-finite tokens and negative class ids
var ErrMalformedLine = errors.New("malformed annotation line")

// ParseError reports the 1-based line that failed to parse
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PathFor returns the annotation file that belongs to imagePath: same
// directory, same base name, .txt extension.
func PathFor(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + Extension
}

// Parse reads "classId cx cy w h" lines. Lines with a token count other than
// five are skipped; a non-numeric token aborts with a *ParseError.
func Parse(r io.Reader) ([]Box, error) {
	var boxes []Box
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) != 5 {
			continue
		}

		classID, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("%w: class id: %v", ErrMalformedLine, err)}
		}
		if classID < 0 {
			return nil, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("%w: negative class id %d", ErrMalformedLine, classID)}
		}

		var coords [4]float64
		for i, tok := range fields[1:] {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("%w: %v", ErrMalformedLine, err)}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("%w: non-finite value %q", ErrMalformedLine, tok)}
			}
			coords[i] = v
		}

		boxes = append(boxes, Box{ClassID: classID, Cx: coords[0], Cy: coords[1], W: coords[2], H: coords[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}
	return boxes, nil
}

// Write emits one line per box with six-decimal coordinates
func Write(w io.Writer, boxes []Box) error {
	bw := bufio.NewWriter(w)
	for _, b := range boxes {
		if _, err := fmt.Fprintf(bw, "%d %.6f %.6f %.6f %.6f\n", b.ClassID, b.Cx, b.Cy, b.W, b.H); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadFile reads an annotation file. A missing file is an empty set.
func LoadFile(path string) ([]Box, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation file: %w", err)
	}
	defer f.Close()

	boxes, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return boxes, nil
}

// SaveFile writes boxes to path. An empty set removes the file, since a
// missing file means zero annotations.
func SaveFile(path string, boxes []Box) error {
	if len(boxes) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove annotation file: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	if err := Write(&buf, boxes); err != nil {
		return fmt.Errorf("failed to format annotations: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write annotation file: %w", err)
	}
	return nil
}

// RemapFile applies a class-id mapping to an annotation file on disk. Files
// left without boxes are removed. A missing file is not an error.
func RemapFile(path string, mapping map[int]int) (dropped int, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return 0, nil
	}

	boxes, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	boxes, dropped = RemapBoxes(boxes, mapping)
	if err := SaveFile(path, boxes); err != nil {
		return 0, err
	}
	return dropped, nil
}
