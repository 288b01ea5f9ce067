package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dupefinder/internal/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testInfo(path string) *models.ImageInfo {
	return &models.ImageInfo{
		Path:           path,
		Width:          640,
		Height:         480,
		PixelCount:     640 * 480,
		BitDepth:       24,
		Format:         "jpeg",
		HasExif:        true,
		FileHash:       "aaaa1111",
		PerceptualHash: "bbbb2222",
		QualityScore:   42.5,
	}
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.jpg", "image bytes")

	if !c.Put(testInfo(path)) {
		t.Fatal("Put returned false for an existing file")
	}

	got := c.Get(path)
	if got == nil {
		t.Fatal("Get returned a miss after Put")
	}
	if got.Path != path || got.Width != 640 || got.Height != 480 {
		t.Errorf("wrong record: %+v", got)
	}
	if got.FileHash != "aaaa1111" || got.PerceptualHash != "bbbb2222" {
		t.Errorf("hashes not preserved: %+v", got)
	}
	if !got.HasExif {
		t.Error("exif flag not preserved")
	}
	if got.QualityScore != 42.5 {
		t.Errorf("quality = %f, want 42.5", got.QualityScore)
	}
	if got.Error != "" {
		t.Errorf("unexpected error field: %q", got.Error)
	}
}

func TestCache_MissOnUnknownPath(t *testing.T) {
	c := newTestCache(t)
	path := writeTestFile(t, t.TempDir(), "a.jpg", "image bytes")
	if c.Get(path) != nil {
		t.Error("Get on an uncached file should miss")
	}
	if c.Get(filepath.Join(t.TempDir(), "gone.jpg")) != nil {
		t.Error("Get on a missing file should miss")
	}
}

func TestCache_InvalidatedByFileChange(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.jpg", "image bytes")
	c.Put(testInfo(path))

	// Same size, different mtime: the derived key changes.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if c.Get(path) != nil {
		t.Error("entry should be invalidated after mtime change")
	}

	// Rewriting with different content changes size as well.
	writeTestFile(t, dir, "a.jpg", "different image bytes")
	if c.Get(path) != nil {
		t.Error("entry should be invalidated after content change")
	}
}

func TestCache_ErrorRecordRoundTrip(t *testing.T) {
	c := newTestCache(t)
	path := writeTestFile(t, t.TempDir(), "a.cr2", "raw bytes")

	info := &models.ImageInfo{
		Path:     path,
		FileHash: "cccc3333",
		Error:    "no decoder available for cr2 format",
	}
	if !c.Put(info) {
		t.Fatal("Put failed")
	}

	got := c.Get(path)
	if got == nil {
		t.Fatal("error records should be cached too")
	}
	if got.Error != info.Error {
		t.Errorf("error = %q, want %q", got.Error, info.Error)
	}
}

func TestCache_PutVanishedFile(t *testing.T) {
	c := newTestCache(t)
	if c.Put(testInfo(filepath.Join(t.TempDir(), "gone.jpg"))) {
		t.Error("Put should report failure when the file no longer exists")
	}
}

func TestCache_Batch(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()

	var infos []*models.ImageInfo
	var paths []string
	for i := 0; i < 8; i++ {
		p := writeTestFile(t, dir, fmt.Sprintf("img%d.jpg", i), fmt.Sprintf("bytes %d", i))
		paths = append(paths, p)
		infos = append(infos, testInfo(p))
	}

	if n := c.PutBatch(infos); n != len(infos) {
		t.Fatalf("PutBatch stored %d, want %d", n, len(infos))
	}

	uncached := writeTestFile(t, dir, "extra.jpg", "extra bytes")
	got := c.GetBatch(append(paths, uncached))
	if len(got) != len(paths) {
		t.Fatalf("GetBatch returned %d hits, want %d", len(got), len(paths))
	}
	for _, p := range paths {
		if got[p] == nil {
			t.Errorf("missing hit for %s", p)
		}
	}
	if got[uncached] != nil {
		t.Error("uncached path should be a miss")
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	path := writeTestFile(t, t.TempDir(), "a.jpg", "image bytes")

	c, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	c.Put(testInfo(path))
	c.Close()

	c2, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	if c2.Get(path) == nil {
		t.Error("entry should survive a close and reopen")
	}
}

func TestCache_CreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "cache.db")
	c, err := New(dbPath)
	if err != nil {
		t.Fatalf("New should create parent directories: %v", err)
	}
	c.Close()
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestCache_CleanupMissing(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	keep := writeTestFile(t, dir, "keep.jpg", "keep bytes")
	gone := writeTestFile(t, dir, "gone.jpg", "gone bytes")
	c.PutBatch([]*models.ImageInfo{testInfo(keep), testInfo(gone)})

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	removed, err := c.CleanupMissing()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if c.Get(keep) == nil {
		t.Error("surviving file's entry should remain")
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("entries = %d, want 1", stats.Entries)
	}
}

func TestCache_CleanupStale(t *testing.T) {
	c := newTestCache(t)
	path := writeTestFile(t, t.TempDir(), "a.jpg", "image bytes")
	c.Put(testInfo(path))

	// A generous age keeps the fresh entry.
	removed, err := c.CleanupStale(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}

	// A cutoff in the future removes everything.
	removed, err = c.CleanupStale(-time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestCache_InvalidateAndClear(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.jpg", "a bytes")
	b := writeTestFile(t, dir, "b.jpg", "b bytes")
	c.PutBatch([]*models.ImageInfo{testInfo(a), testInfo(b)})

	if err := c.Invalidate(a); err != nil {
		t.Fatal(err)
	}
	if c.Get(a) != nil {
		t.Error("invalidated entry should miss")
	}
	if c.Get(b) == nil {
		t.Error("other entries should remain")
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Errorf("entries after clear = %d, want 0", stats.Entries)
	}
}

func TestCache_InvalidateDir(t *testing.T) {
	c := newTestCache(t)
	sub := t.TempDir()
	other := t.TempDir()
	inside := writeTestFile(t, sub, "a.jpg", "a bytes")
	outside := writeTestFile(t, other, "b.jpg", "b bytes")
	c.PutBatch([]*models.ImageInfo{testInfo(inside), testInfo(outside)})

	if err := c.InvalidateDir(sub); err != nil {
		t.Fatal(err)
	}
	if c.Get(inside) != nil {
		t.Error("entry under the directory should be removed")
	}
	if c.Get(outside) == nil {
		t.Error("entry outside the directory should remain")
	}
}
