package imghash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"dupefinder/internal/models"
)

// fileHashChunk is the read size for streaming content hashes.
const fileHashChunk = 64 * 1024

// Analyze extracts metadata and hashes for one image file. It never fails:
// every failure mode is recorded on the returned record's Error field, and
// a record with Error set is excluded from duplicate detection.
func Analyze(path string) *models.ImageInfo {
	info := &models.ImageInfo{Path: path}

	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		info.Error = "file not found"
		return info
	}
	if err != nil {
		info.Error = fmt.Sprintf("cannot stat file: %v", err)
		return info
	}
	info.FileSize = stat.Size()
	info.ModTime = stat.ModTime()

	f, err := os.Open(path)
	if os.IsPermission(err) {
		info.Error = "file not readable: permission denied"
		return info
	}
	if err != nil {
		info.Error = fmt.Sprintf("cannot open file: %v", err)
		return info
	}
	defer f.Close()

	hash, err := FileHashReader(f)
	if err != nil {
		info.Error = fmt.Sprintf("content hash failed: %v", err)
		return info
	}
	info.FileHash = hash

	if !IsDecodable(path) {
		ext := strings.TrimPrefix(normalizeExt(path), ".")
		if ext == "" {
			ext = "unknown"
		}
		info.Error = fmt.Sprintf("no decoder available for %s format", ext)
		return info
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		info.Error = fmt.Sprintf("cannot rewind file: %v", err)
		return info
	}

	// Decodes the full pixel data, so truncated or corrupt files fail
	// here rather than during fingerprinting.
	img, format, err := image.Decode(f)
	if err != nil {
		info.Error = fmt.Sprintf("not a valid image file: %v", err)
		return info
	}

	bounds := img.Bounds()
	info.Width = bounds.Dx()
	info.Height = bounds.Dy()
	info.PixelCount = int64(info.Width) * int64(info.Height)
	info.Format = strings.ToLower(format)
	info.BitDepth = bitDepth(img)
	info.HasExif = hasExif(path)

	// goimagehash grayscales internally, which covers the RGB/luminance
	// normalization the pHash expects.
	phash, err := goimagehash.ExtPerceptionHash(img, 16, 16)
	if err == nil {
		info.PerceptualHash = fingerprintFromHash(phash).String()
	}

	info.QualityScore = QualityScore(info)
	return info
}

// FileHash computes the streamed SHA-256 content hash of a file.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()
	return FileHashReader(f)
}

// FileHashReader hashes r in fixed-size chunks without buffering the file.
func FileHashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, fileHashChunk)); err != nil {
		return "", fmt.Errorf("read failed: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// QualityScore computes a ranking score from already-extracted metadata.
// Each term is capped: resolution up to 50, file size up to 30, bit depth
// up to 10, format desirability up to 20. Pure and deterministic.
func QualityScore(info *models.ImageInfo) float64 {
	score := 0.0

	if info.PixelCount > 0 {
		score += min(50, float64(info.PixelCount)/1_000_000*2)
	}
	if info.FileSize > 0 {
		score += min(30, float64(info.FileSize)/(1024*1024)*3)
	}
	if info.BitDepth > 0 {
		score += min(10, float64(info.BitDepth)/3.2)
	}
	score += float64(FormatRank(info.Path)) / 5

	return score
}

// bitDepth maps the decoded pixel representation to bits per pixel.
func bitDepth(img image.Image) int {
	switch img.(type) {
	case *image.Gray:
		return 8
	case *image.Gray16:
		return 16
	case *image.Paletted:
		return 8
	case *image.RGBA, *image.NRGBA:
		return 32
	case *image.RGBA64, *image.NRGBA64:
		return 64
	case *image.CMYK:
		return 32
	case *image.YCbCr, *image.NYCbCrA:
		return 24
	default:
		return 24
	}
}

// hasExif reports whether the file carries EXIF metadata.
func hasExif(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = exif.Decode(f)
	return err == nil
}
