package scan

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestFindImageFiles(t *testing.T) {
	dir := t.TempDir()
	writeBytes(t, dir, "b.jpg", []byte("x"))
	writeBytes(t, dir, "a.png", []byte("x"))
	writeBytes(t, dir, "raw.cr2", []byte("x"))
	writeBytes(t, dir, "notes.txt", []byte("x"))
	writeBytes(t, dir, "clip.mp4", []byte("x"))

	files, err := FindImageFiles(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3: %v", len(files), files)
	}
	if !sort.StringsAreSorted(files) {
		t.Errorf("result not sorted: %v", files)
	}
	for _, f := range files {
		if !filepath.IsAbs(f) {
			t.Errorf("path not absolute: %s", f)
		}
	}
}

func TestFindImageFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeBytes(t, dir, "top.jpg", []byte("x"))
	writeBytes(t, sub, "deep.jpg", []byte("x"))

	flat, err := FindImageFiles(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 1 {
		t.Errorf("non-recursive found %d files, want 1: %v", len(flat), flat)
	}

	all, err := FindImageFiles(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("recursive found %d files, want 2: %v", len(all), all)
	}
}

func TestFindImageFiles_SymlinkDedup(t *testing.T) {
	dir := t.TempDir()
	target := writeBytes(t, dir, "real.jpg", []byte("x"))
	if err := os.Symlink(target, filepath.Join(dir, "alias.jpg")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := FindImageFiles(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("got %d files, want 1 after symlink dedup: %v", len(files), files)
	}
}

func TestFindImageFiles_Errors(t *testing.T) {
	if _, err := FindImageFiles(filepath.Join(t.TempDir(), "missing"), false); err == nil {
		t.Error("missing root should fail")
	}

	file := writeBytes(t, t.TempDir(), "a.jpg", []byte("x"))
	if _, err := FindImageFiles(file, false); err == nil {
		t.Error("file root should fail")
	}
}

func TestFindImageFiles_EmptyDir(t *testing.T) {
	files, err := FindImageFiles(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files from an empty directory", len(files))
	}
}
