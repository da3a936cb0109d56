package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// PreviewPath names the preview written for inputFile: same base name, the
// given format as extension, inside outputDir.
func PreviewPath(inputFile, outputDir, format string) string {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(inputFile)), ".")
		if format == "" {
			format = "jpg"
		}
	}
	base := filepath.Base(inputFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, name+"."+format)
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
