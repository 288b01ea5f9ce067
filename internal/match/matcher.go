// Package match implements duplicate detection: exact grouping by content
// hash, and perceptual clustering over Hamming space with optional LSH
// acceleration.
package match

import (
	"dupefinder/internal/models"
)

// DefaultThreshold is the default Hamming distance for perceptual matches.
const DefaultThreshold = 10

// ProgressFunc reports comparison progress as (current, total).
type ProgressFunc func(current, total int)

// collectGroups builds DuplicateGroups from a root-to-members mapping.
// Groups are ordered by first appearance in the candidate list, so the
// result is deterministic for a given input order and the group sets are
// independent of it. IDs number consecutively from startID.
func collectGroups(candidates []*models.ImageInfo, rootOf func(i int) int, matchType string, startID int) []*models.DuplicateGroup {
	members := make(map[int][]*models.ImageInfo)
	var order []int
	for i, img := range candidates {
		root := rootOf(i)
		if _, seen := members[root]; !seen {
			order = append(order, root)
		}
		members[root] = append(members[root], img)
	}

	var groups []*models.DuplicateGroup
	id := startID
	for _, root := range order {
		imgs := members[root]
		if len(imgs) < 2 {
			continue
		}
		groups = append(groups, &models.DuplicateGroup{
			ID:        id,
			Images:    imgs,
			MatchType: matchType,
		})
		id++
	}
	return groups
}
