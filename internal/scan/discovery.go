package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"dupefinder/internal/imghash"
)

// FindImageFiles returns the image files under root, deduplicated by
// resolved path so the same file reached through different symlinks appears
// once. The result is sorted and uses absolute paths. Unreadable
// subdirectories are skipped rather than failing the walk.
func FindImageFiles(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	var paths []string
	seen := make(map[string]bool)

	add := func(path string) {
		if !imghash.IsImageFile(path) {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			resolved = abs
		}
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		paths = append(paths, abs)
	}

	if recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if d.IsDir() {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", root, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			add(filepath.Join(root, e.Name()))
		}
	}

	sort.Strings(paths)
	return paths, nil
}
