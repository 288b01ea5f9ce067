package models

import (
	"fmt"
	"path/filepath"
	"time"
)

// Match types for duplicate groups.
const (
	MatchExact      = "exact"
	MatchPerceptual = "perceptual"
)

// ImageInfo holds metadata and hash information for one analyzed image file.
// Records are immutable once created; a changed file produces a new record
// under a new cache key.
type ImageInfo struct {
	Path           string    `json:"path"`
	FileSize       int64     `json:"file_size"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	PixelCount     int64     `json:"pixel_count"`
	BitDepth       int       `json:"bit_depth"`
	Format         string    `json:"format"`
	ModTime        time.Time `json:"mod_time"`
	HasExif        bool      `json:"has_exif"`
	FileHash       string    `json:"file_hash,omitempty"`       // SHA-256 hex, empty if not computed
	PerceptualHash string    `json:"perceptual_hash,omitempty"` // 256-bit fingerprint as hex, empty if not computed
	QualityScore   float64   `json:"quality_score"`
	Error          string    `json:"error,omitempty"` // non-empty excludes the record from detection
}

// Filename returns just the filename portion of the path.
func (i *ImageInfo) Filename() string {
	return filepath.Base(i.Path)
}

// Resolution returns the dimensions as a "WxH" string.
func (i *ImageInfo) Resolution() string {
	return fmt.Sprintf("%dx%d", i.Width, i.Height)
}

// Megapixels returns the pixel count in megapixels.
func (i *ImageInfo) Megapixels() float64 {
	return float64(i.PixelCount) / 1_000_000
}

// DuplicateGroup is a cluster of two or more images sharing identity.
type DuplicateGroup struct {
	ID           int          `json:"id"`
	Images       []*ImageInfo `json:"images"`
	MatchType    string       `json:"match_type"` // MatchExact or MatchPerceptual
	SelectedKeep string       `json:"selected_keep,omitempty"`
}

// BestImage returns the highest quality image in the group.
func (g *DuplicateGroup) BestImage() *ImageInfo {
	var best *ImageInfo
	for _, img := range g.Images {
		if best == nil || img.QualityScore > best.QualityScore {
			best = img
		}
	}
	return best
}

// Duplicates returns all images except the best one.
func (g *DuplicateGroup) Duplicates() []*ImageInfo {
	best := g.BestImage()
	var dups []*ImageInfo
	for _, img := range g.Images {
		if img != best {
			dups = append(dups, img)
		}
	}
	return dups
}

// WastedBytes returns the total size of the group's duplicates.
func (g *DuplicateGroup) WastedBytes() int64 {
	var total int64
	for _, img := range g.Duplicates() {
		total += img.FileSize
	}
	return total
}

// CacheStats tracks cache usage during one analysis pass.
type CacheStats struct {
	Hits       int `json:"hits"`
	Misses     int `json:"misses"`
	TotalFiles int `json:"total_files"`
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalFiles) * 100
}

// FormatSize formats a byte count in human-readable form.
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
