// Package scan enumerates image files eligible for comparison.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions OpenCV's imread understands, lowercase without the dot.
var validExtensions = map[string]bool{
	"bmp": true, "dib": true,
	"jpeg": true, "jpg": true, "jpe": true, "jp2": true,
	"png": true, "webp": true,
	"pbm": true, "pgm": true, "ppm": true, "pxm": true, "pnm": true,
	"sr": true, "ras": true,
	"tiff": true, "tif": true,
	"exr": true, "hdr": true, "pic": true,
}

// IsImage reports whether the path has a recognized image extension.
func IsImage(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return validExtensions[ext]
}

// List returns the image files directly inside dir, or in the whole tree
// below it when recurse is set. Paths come back sorted so comparison order
// is stable between runs.
func List(dir string, recurse bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("'%s' is not a directory", dir)
	}

	var paths []string
	if recurse {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsImage(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk '%s': %w", dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read '%s': %w", dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && IsImage(entry.Name()) {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}
