package imghash

import (
	"path/filepath"
	"strings"
)

// decodableExts are the formats a registered Go decoder can handle.
var decodableExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".tif": true,
}

// knownImageExts covers formats recognized as images during discovery, even
// when no decoder is registered for them (RAW and editor formats fail
// analysis with a descriptive error instead of being silently skipped).
var knownImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".tif": true,
	".raw": true, ".cr2": true, ".cr3": true, ".nef": true, ".arw": true,
	".dng": true, ".orf": true, ".rw2": true, ".pef": true, ".raf": true,
	".heic": true, ".heif": true, ".avif": true, ".jxl": true,
	".psd": true, ".ico": true,
}

// formatRank ranks format quality potential 0-100; lossless and RAW formats
// rank above lossy ones.
var formatRank = map[string]int{
	".raw": 100, ".cr2": 100, ".cr3": 100, ".nef": 100, ".arw": 100,
	".dng": 100, ".orf": 100, ".rw2": 100, ".pef": 100, ".raf": 100,
	".tiff": 90, ".tif": 90,
	".png": 85,
	".bmp": 80, ".psd": 80, ".jxl": 80,
	".webp": 75, ".avif": 75, ".heic": 75, ".heif": 75,
	".jpg": 60, ".jpeg": 60,
	".gif": 50,
	".ico": 40,
}

const defaultFormatRank = 50

// IsImageFile reports whether the path has a recognized image extension.
func IsImageFile(path string) bool {
	return knownImageExts[normalizeExt(path)]
}

// IsDecodable reports whether a decoder is registered for the path's format.
func IsDecodable(path string) bool {
	return decodableExts[normalizeExt(path)]
}

// FormatRank returns the quality rank for the path's extension.
func FormatRank(path string) int {
	if rank, ok := formatRank[normalizeExt(path)]; ok {
		return rank
	}
	return defaultFormatRank
}

func normalizeExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
