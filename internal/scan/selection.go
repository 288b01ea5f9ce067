package scan

import (
	"sort"

	"dupefinder/internal/models"
)

// Strategy names which duplicate to keep in each group.
type Strategy string

const (
	StrategyQuality  Strategy = "quality"
	StrategyLargest  Strategy = "largest"
	StrategySmallest Strategy = "smallest"
	StrategyNewest   Strategy = "newest"
	StrategyOldest   Strategy = "oldest"
)

// Recommendation values in the selection map.
const (
	Keep   = "keep"
	Delete = "delete"
)

// ApplySelectionStrategy recommends exactly one keep per group, mapping
// every member path to Keep or Delete and recording the kept path on the
// group. Ties break deterministically on quality score, file size,
// modification time, then path, so repeated runs agree. Unknown strategies
// fall back to quality.
func ApplySelectionStrategy(groups []*models.DuplicateGroup, strategy Strategy) map[string]string {
	selections := make(map[string]string)

	for _, group := range groups {
		if len(group.Images) == 0 {
			continue
		}
		sorted := make([]*models.ImageInfo, len(group.Images))
		copy(sorted, group.Images)
		sort.SliceStable(sorted, func(i, j int) bool {
			return prefer(sorted[i], sorted[j], strategy)
		})

		group.SelectedKeep = sorted[0].Path
		selections[sorted[0].Path] = Keep
		for _, img := range sorted[1:] {
			selections[img.Path] = Delete
		}
	}
	return selections
}

// prefer reports whether a should be kept over b under the strategy.
func prefer(a, b *models.ImageInfo, strategy Strategy) bool {
	switch strategy {
	case StrategyLargest:
		if a.FileSize != b.FileSize {
			return a.FileSize > b.FileSize
		}
	case StrategySmallest:
		if a.FileSize != b.FileSize {
			return a.FileSize < b.FileSize
		}
	case StrategyNewest:
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.After(b.ModTime)
		}
	case StrategyOldest:
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.Before(b.ModTime)
		}
	}
	return tieBreak(a, b)
}

// tieBreak orders by quality, then size, then recency, then path.
func tieBreak(a, b *models.ImageInfo) bool {
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	if a.FileSize != b.FileSize {
		return a.FileSize > b.FileSize
	}
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	return a.Path < b.Path
}
