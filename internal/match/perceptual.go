package match

import (
	"dupefinder/internal/imghash"
	"dupefinder/internal/models"
)

// LSHMode selects how perceptual matching finds candidate pairs.
type LSHMode int

const (
	// LSHAuto uses LSH when the candidate pool reaches LSHAutoThreshold.
	LSHAuto LSHMode = iota
	// LSHOn forces the LSH index regardless of collection size.
	LSHOn
	// LSHOff forces full pairwise comparison.
	LSHOff
)

// LSHAutoThreshold is the candidate count at which LSHAuto switches from
// brute force to the LSH index.
const LSHAutoThreshold = 5000

// lshSeed fixes the sampled bit positions across runs.
const lshSeed = 42

// progressInterval spaces out progress callbacks during comparison loops.
const progressInterval = 10_000

// FindPerceptualDuplicates clusters visually similar images whose
// fingerprint Hamming distance is at or below threshold. Records without a
// fingerprint, with an extraction error, or whose content hash appears in
// excludeHashes (typically the exact-duplicate hashes) are skipped. Group
// IDs number from startID so they continue after the exact groups.
//
// Under LSHAuto the result is exact for small pools and approximate (>=99%
// expected recall) for large ones.
func FindPerceptualDuplicates(
	images []*models.ImageInfo,
	threshold int,
	excludeHashes map[string]bool,
	mode LSHMode,
	startID int,
	progress ProgressFunc,
) []*models.DuplicateGroup {
	if threshold < 0 {
		threshold = DefaultThreshold
	}

	var candidates []*models.ImageInfo
	var prints []imghash.Fingerprint
	for _, img := range images {
		if img.PerceptualHash == "" || img.Error != "" || excludeHashes[img.FileHash] {
			continue
		}
		fp, err := imghash.ParseFingerprint(img.PerceptualHash)
		if err != nil {
			continue
		}
		candidates = append(candidates, img)
		prints = append(prints, fp)
	}
	if len(candidates) < 2 {
		return nil
	}

	useLSH := mode == LSHOn || (mode == LSHAuto && len(candidates) >= LSHAutoThreshold)

	var uf *unionFind
	if useLSH {
		uf = clusterLSH(prints, threshold, progress)
	} else {
		uf = clusterBruteForce(prints, threshold, progress)
	}

	return collectGroups(candidates, uf.find, models.MatchPerceptual, startID)
}

// clusterBruteForce merges all pairs within threshold via full O(n^2)
// enumeration.
func clusterBruteForce(prints []imghash.Fingerprint, threshold int, progress ProgressFunc) *unionFind {
	n := len(prints)
	uf := newUnionFind(n)
	total := n * (n - 1) / 2

	done := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if imghash.HammingDistance(prints[i], prints[j]) <= threshold {
				uf.union(i, j)
			}
			done++
			if progress != nil && done%progressInterval == 0 {
				progress(done, total)
			}
		}
	}
	if progress != nil {
		progress(total, total)
	}
	return uf
}

// clusterLSH merges pairs drawn from the LSH candidate stream. A pair whose
// indices already share a root is skipped before the Hamming measurement;
// that makes the cross-table repeats the index emits a cheap no-op.
func clusterLSH(prints []imghash.Fingerprint, threshold int, progress ProgressFunc) *unionFind {
	numTables, bitsPerTable := OptimalParams(len(prints))
	index := NewLSHIndex(numTables, bitsPerTable, imghash.FingerprintBits, lshSeed)
	for i, fp := range prints {
		index.Add(i, fp)
	}

	uf := newUnionFind(len(prints))
	total := index.EstimateCandidatePairs()

	done := 0
	index.VisitCandidatePairs(func(i, j int) bool {
		done++
		if progress != nil && done%progressInterval == 0 {
			progress(done, total)
		}
		if uf.find(i) == uf.find(j) {
			return true
		}
		if imghash.HammingDistance(prints[i], prints[j]) <= threshold {
			uf.union(i, j)
		}
		return true
	})
	if progress != nil {
		progress(total, total)
	}
	return uf
}
