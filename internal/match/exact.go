package match

import (
	"dupefinder/internal/models"
)

// FindExactDuplicates partitions records by content hash in a single pass.
// Records with an empty hash or an extraction error are ignored. Every
// partition with two or more members becomes an exact DuplicateGroup, with
// IDs numbered from startID.
func FindExactDuplicates(images []*models.ImageInfo, startID int) []*models.DuplicateGroup {
	if len(images) < 2 {
		return nil
	}

	byHash := make(map[string][]*models.ImageInfo)
	var order []string
	for _, img := range images {
		if img.FileHash == "" || img.Error != "" {
			continue
		}
		if _, seen := byHash[img.FileHash]; !seen {
			order = append(order, img.FileHash)
		}
		byHash[img.FileHash] = append(byHash[img.FileHash], img)
	}

	var groups []*models.DuplicateGroup
	id := startID
	for _, hash := range order {
		imgs := byHash[hash]
		if len(imgs) < 2 {
			continue
		}
		groups = append(groups, &models.DuplicateGroup{
			ID:        id,
			Images:    imgs,
			MatchType: models.MatchExact,
		})
		id++
	}
	return groups
}

// ExactHashes returns the set of content hashes covered by exact groups,
// for excluding those records from perceptual matching.
func ExactHashes(groups []*models.DuplicateGroup) map[string]bool {
	hashes := make(map[string]bool)
	for _, g := range groups {
		for _, img := range g.Images {
			hashes[img.FileHash] = true
		}
	}
	return hashes
}
