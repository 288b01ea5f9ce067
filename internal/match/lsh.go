package match

import (
	"math"
	"math/rand"
	"sort"

	"dupefinder/internal/imghash"
)

// LSHIndex approximates "all fingerprint pairs within a Hamming threshold"
// without full pairwise comparison, using bit sampling: each table buckets
// items by a fixed random subset of bit positions, so similar fingerprints
// collide in at least one table with high probability.
//
// The index is scan-scoped and single-threaded: built once from the
// candidate fingerprints, walked for pairs, then discarded.
type LSHIndex struct {
	numTables    int
	bitsPerTable int
	positions    [][]int // sampled bit positions per table
	tables       []map[uint64][]int
	count        int
}

// LSHStats summarizes an index after population.
type LSHStats struct {
	NumTables    int
	BitsPerTable int
	Items        int
	Buckets      int
	AvgBucket    float64
}

// NewLSHIndex creates an index with numTables independent tables, each
// sampling bitsPerTable positions out of hashBits. The seed makes the
// sampled positions reproducible.
func NewLSHIndex(numTables, bitsPerTable, hashBits int, seed int64) *LSHIndex {
	rng := rand.New(rand.NewSource(seed))
	positions := make([][]int, numTables)
	tables := make([]map[uint64][]int, numTables)
	for t := range positions {
		sample := rng.Perm(hashBits)[:bitsPerTable]
		sort.Ints(sample)
		positions[t] = sample
		tables[t] = make(map[uint64][]int)
	}
	return &LSHIndex{
		numTables:    numTables,
		bitsPerTable: bitsPerTable,
		positions:    positions,
		tables:       tables,
	}
}

// Add inserts a fingerprint into every table's appropriate bucket.
func (l *LSHIndex) Add(idx int, fp imghash.Fingerprint) {
	for t, table := range l.tables {
		key := l.bucketKey(fp, t)
		table[key] = append(table[key], idx)
	}
	l.count++
}

// bucketKey packs the table's sampled bits into a uint64. bitsPerTable must
// not exceed 64.
func (l *LSHIndex) bucketKey(fp imghash.Fingerprint, table int) uint64 {
	var key uint64
	for _, pos := range l.positions[table] {
		key <<= 1
		if fp.Bit(pos) {
			key |= 1
		}
	}
	return key
}

// Size returns the number of fingerprints added.
func (l *LSHIndex) Size() int {
	return l.count
}

// VisitCandidatePairs streams (i, j) index pairs, i < j, drawn from every
// bucket holding more than one item. The same true pair may be emitted once
// per table it collides in; callers deduplicate (union-find makes the
// repeat a cheap no-op). Return false from visit to stop early.
func (l *LSHIndex) VisitCandidatePairs(visit func(i, j int) bool) {
	for _, table := range l.tables {
		for _, bucket := range table {
			if len(bucket) < 2 {
				continue
			}
			for a := 0; a < len(bucket); a++ {
				for b := a + 1; b < len(bucket); b++ {
					i, j := bucket[a], bucket[b]
					if i > j {
						i, j = j, i
					}
					if !visit(i, j) {
						return
					}
				}
			}
		}
	}
}

// EstimateCandidatePairs returns the pair count VisitCandidatePairs will
// emit, including cross-table repeats. Used for progress totals.
func (l *LSHIndex) EstimateCandidatePairs() int {
	total := 0
	for _, table := range l.tables {
		for _, bucket := range table {
			n := len(bucket)
			total += n * (n - 1) / 2
		}
	}
	return total
}

// Stats reports bucket occupancy.
func (l *LSHIndex) Stats() LSHStats {
	buckets, items := 0, 0
	for _, table := range l.tables {
		buckets += len(table)
		for _, bucket := range table {
			items += len(bucket)
		}
	}
	avg := 0.0
	if buckets > 0 {
		avg = float64(items) / float64(buckets)
	}
	return LSHStats{
		NumTables:    l.numTables,
		BitsPerTable: l.bitsPerTable,
		Items:        l.count,
		Buckets:      buckets,
		AvgBucket:    avg,
	}
}

// Recall returns the probability that a true pair at Hamming distance d is
// emitted as a candidate: one table matches with p = ((B-d)/B)^k, and with
// L independent tables at least one matches with 1-(1-p)^L. This formula is
// the authoritative model; bucket-based parameter choices are tuned
// against it.
func Recall(d, bitsPerTable, numTables, hashBits int) float64 {
	p := math.Pow(float64(hashBits-d)/float64(hashBits), float64(bitsPerTable))
	return 1 - math.Pow(1-p, float64(numTables))
}

// OptimalParams picks (numTables, bitsPerTable) for a collection size.
// Smaller collections use more selective buckets to cut false candidates;
// very large ones trade more candidates for recall. The buckets are a
// tuned heuristic, each giving >=99% recall at the default threshold under
// the Recall model.
func OptimalParams(numImages int) (numTables, bitsPerTable int) {
	switch {
	case numImages < 10_000:
		return 15, 20
	case numImages < 50_000:
		return 18, 18
	case numImages < 200_000:
		return 20, 16
	default:
		return 25, 14
	}
}
