package scan

import (
	"time"

	"golang.org/x/sync/errgroup"

	"dupefinder/internal/cache"
	"dupefinder/internal/imghash"
	"dupefinder/internal/models"
)

// progressMinInterval coalesces progress callbacks: at six-figure file
// counts a per-item callback is itself a bottleneck.
const progressMinInterval = time.Second

// Analyzer fans a file list out across a bounded worker pool, consulting
// the cache first and writing newly extracted records back in one batch.
type Analyzer struct {
	workers   int
	cache     *cache.Cache // nil disables caching
	progress  func(done, total int)
	cancelled func() bool
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithCache enables cache-first analysis.
func WithCache(c *cache.Cache) AnalyzerOption {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithProgress sets a progress callback. Calls are coalesced to at most one
// per second, plus a final call when the batch ends.
func WithProgress(fn func(done, total int)) AnalyzerOption {
	return func(a *Analyzer) {
		a.progress = fn
	}
}

// WithCancel sets a cooperative cancellation check. Once it returns true,
// workers stop pulling new files; records already completed are returned.
func WithCancel(fn func() bool) AnalyzerOption {
	return func(a *Analyzer) {
		a.cancelled = fn
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		workers:   4,
		cancelled: func() bool { return false },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeImages analyzes the given paths and returns their records plus
// cache hit/miss counters. Result order is not significant. A per-file
// extraction failure yields a record with Error set, never an aborted
// batch. On cancellation the returned set is partial.
func (a *Analyzer) AnalyzeImages(paths []string) ([]*models.ImageInfo, models.CacheStats) {
	stats := models.CacheStats{TotalFiles: len(paths)}
	if len(paths) == 0 {
		return nil, stats
	}

	var results []*models.ImageInfo
	toAnalyze := paths

	if a.cache != nil {
		cached := a.cache.GetBatch(paths)
		toAnalyze = nil
		for _, p := range paths {
			if info, ok := cached[p]; ok {
				results = append(results, info)
				stats.Hits++
			} else {
				toAnalyze = append(toAnalyze, p)
			}
		}
	}
	stats.Misses = len(toAnalyze)

	if len(toAnalyze) == 0 {
		a.report(len(results), len(paths), time.Time{})
		return results, stats
	}

	work := make(chan string, len(toAnalyze))
	for _, p := range toAnalyze {
		work <- p
	}
	close(work)

	out := make(chan *models.ImageInfo)
	var g errgroup.Group
	for range a.workers {
		g.Go(func() error {
			for path := range work {
				if a.cancelled() {
					return nil
				}
				out <- imghash.Analyze(path)
			}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(out)
	}()

	var fresh []*models.ImageInfo
	lastReport := time.Now()
	for info := range out {
		results = append(results, info)
		fresh = append(fresh, info)
		lastReport = a.report(len(results), len(paths), lastReport)
	}
	a.report(len(results), len(paths), time.Time{})

	// One batched write amortizes the cache's write lock.
	if a.cache != nil && len(fresh) > 0 {
		a.cache.PutBatch(fresh)
	}

	return results, stats
}

// report invokes the progress callback if enough time has passed or last is
// zero (forced). Returns the timestamp of the last delivered callback.
func (a *Analyzer) report(done, total int, last time.Time) time.Time {
	if a.progress == nil {
		return last
	}
	now := time.Now()
	if !last.IsZero() && now.Sub(last) < progressMinInterval && done != total {
		return last
	}
	a.progress(done, total)
	return now
}
