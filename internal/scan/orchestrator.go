package scan

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dupefinder/internal/cache"
	"dupefinder/internal/match"
	"dupefinder/internal/models"
)

// Status is the orchestrator's scan phase.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusScanning           Status = "scanning"
	StatusAnalyzing          Status = "analyzing"
	StatusExactMatching      Status = "exact_matching"
	StatusPerceptualMatching Status = "perceptual_matching"
	StatusComplete           Status = "complete"
	StatusError              Status = "error"
	StatusCancelled          Status = "cancelled"
)

// pausePoll is the sleep between pause-flag checks.
const pausePoll = 200 * time.Millisecond

// State is a snapshot of scan progress. Partial results (records analyzed
// and groups found so far) survive cancellation and errors so callers can
// inspect what was discovered.
type State struct {
	Status     Status
	Message    string
	Directory  string
	TotalFiles int
	Analyzed   int
	Percent    int
	Rate       float64 // files/sec during analysis
	ETA        time.Duration
	UsingLSH   bool
	Cache      models.CacheStats
	Records    []*models.ImageInfo
	Failed     []*models.ImageInfo
	Groups     []*models.DuplicateGroup
	Selections map[string]string
	Elapsed    time.Duration
}

// Config carries all scan parameters; the orchestrator holds no global
// configuration.
type Config struct {
	Directory      string
	Recursive      bool
	Threshold      int
	Workers        int
	ExactOnly      bool
	PerceptualOnly bool
	UseCache       bool
	LSHMode        match.LSHMode
	Strategy       Strategy

	// LargeCollectionLimit auto-disables perceptual matching when the
	// discovered file count exceeds it, unless LSHMode is LSHOn. Zero
	// disables the policy. This is a responsiveness policy supplied by the
	// caller, not a capability limit.
	LargeCollectionLimit int
}

// Orchestrator sequences discovery, analysis, exact grouping, perceptual
// grouping, and selection. Run executes on the calling goroutine; Cancel,
// Pause, Resume, and State are safe from any other goroutine.
type Orchestrator struct {
	cfg   Config
	cache *cache.Cache // nil when caching is off

	cancelled atomic.Bool
	paused    atomic.Bool

	mu      sync.Mutex
	state   State
	started time.Time

	onUpdate func(State)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithObserver registers a callback invoked after every state update, with
// a snapshot. Called at the analyzer's coalesced progress cadence during
// long phases.
func WithObserver(fn func(State)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onUpdate = fn
	}
}

// NewOrchestrator creates an orchestrator. The cache handle may be nil;
// it is also ignored when cfg.UseCache is false.
func NewOrchestrator(cfg Config, c *cache.Cache, opts ...OrchestratorOption) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = match.DefaultThreshold
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyQuality
	}
	o := &Orchestrator{cfg: cfg, cache: c}
	o.state = State{Status: StatusIdle, Directory: cfg.Directory}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Cancel requests cooperative cancellation. The flag is polled at phase
// boundaries and inside batch loops; in-flight extraction tasks finish
// first, so the worst-case latency is one task or one progress interval.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Pause blocks further progress at the next checkpoint without discarding
// state.
func (o *Orchestrator) Pause() {
	o.paused.Store(true)
}

// Resume continues a paused scan from where it stopped.
func (o *Orchestrator) Resume() {
	o.paused.Store(false)
}

// Paused reports whether the pause flag is set.
func (o *Orchestrator) Paused() bool {
	return o.paused.Load()
}

// State returns a snapshot of the current scan state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state
	if !o.started.IsZero() {
		s.Elapsed = time.Since(o.started)
	}
	return s
}

func (o *Orchestrator) update(fn func(s *State)) {
	o.mu.Lock()
	fn(&o.state)
	if !o.started.IsZero() {
		o.state.Elapsed = time.Since(o.started)
	}
	snapshot := o.state
	o.mu.Unlock()

	if o.onUpdate != nil {
		o.onUpdate(snapshot)
	}
}

// Run executes the scan to a terminal state: complete, cancelled, or
// error. Unexpected panics during a phase become an error state rather
// than crashing the host.
func (o *Orchestrator) Run() {
	defer func() {
		if r := recover(); r != nil {
			o.update(func(s *State) {
				s.Status = StatusError
				s.Message = fmt.Sprintf("scan failed: %v", r)
			})
		}
	}()

	o.mu.Lock()
	o.started = time.Now()
	o.mu.Unlock()

	files := o.discover()
	if files == nil {
		return
	}

	records, ok := o.analyze(files)
	if !ok {
		return
	}

	var valid []*models.ImageInfo
	for _, r := range records {
		if r.Error == "" {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		o.update(func(s *State) {
			s.Status = StatusComplete
			s.Percent = 100
			s.Message = fmt.Sprintf("no analyzable images (%d failed)", len(records))
		})
		return
	}

	exactGroups, ok := o.matchExact(valid)
	if !ok {
		return
	}

	perceptualGroups, ok := o.matchPerceptual(valid, exactGroups)
	if !ok {
		return
	}

	o.finish(exactGroups, perceptualGroups)
}

// checkpoint handles pause, then reports whether the scan may continue.
// On a cancel request it moves to the cancelled terminal state.
func (o *Orchestrator) checkpoint() bool {
	for o.paused.Load() && !o.cancelled.Load() {
		time.Sleep(pausePoll)
	}
	if !o.cancelled.Load() {
		return true
	}
	o.update(func(s *State) {
		s.Status = StatusCancelled
		s.Message = fmt.Sprintf("scan cancelled (%d images analyzed)", len(s.Records))
	})
	return false
}

func (o *Orchestrator) discover() []string {
	if !o.checkpoint() {
		return nil
	}
	o.update(func(s *State) {
		s.Status = StatusScanning
		s.Message = "scanning for image files"
	})

	files, err := FindImageFiles(o.cfg.Directory, o.cfg.Recursive)
	if err != nil {
		o.update(func(s *State) {
			s.Status = StatusError
			s.Message = err.Error()
		})
		return nil
	}
	if len(files) == 0 {
		o.update(func(s *State) {
			s.Status = StatusComplete
			s.Percent = 100
			s.Message = "no images found"
		})
		return nil
	}

	o.update(func(s *State) { s.TotalFiles = len(files) })

	if o.cfg.LargeCollectionLimit > 0 && len(files) > o.cfg.LargeCollectionLimit &&
		!o.cfg.ExactOnly && !o.cfg.PerceptualOnly && o.cfg.LSHMode != match.LSHOn {
		o.cfg.ExactOnly = true
		o.update(func(s *State) {
			s.Message = fmt.Sprintf(
				"large collection (%d files): perceptual matching disabled, force LSH on to override",
				len(files))
		})
	}

	return files
}

func (o *Orchestrator) analyze(files []string) ([]*models.ImageInfo, bool) {
	if !o.checkpoint() {
		return nil, false
	}
	o.update(func(s *State) {
		s.Status = StatusAnalyzing
		s.Message = fmt.Sprintf("analyzing %d images", len(files))
	})

	start := time.Now()
	analyzer := NewAnalyzer(
		WithWorkers(o.cfg.Workers),
		WithCancel(o.cancelled.Load),
		WithProgress(func(done, total int) {
			// Pause is honored here too, inside the analysis loop.
			for o.paused.Load() && !o.cancelled.Load() {
				time.Sleep(pausePoll)
			}
			elapsed := time.Since(start).Seconds()
			o.update(func(s *State) {
				s.Analyzed = done
				s.Percent = done * 50 / total
				if elapsed > 0 {
					s.Rate = float64(done) / elapsed
					if s.Rate > 0 {
						s.ETA = time.Duration(float64(total-done)/s.Rate) * time.Second
					}
				}
				s.Message = fmt.Sprintf("analyzing images: %d/%d", done, total)
			})
		}),
	)
	if o.cfg.UseCache && o.cache != nil {
		WithCache(o.cache)(analyzer)
	}

	records, stats := analyzer.AnalyzeImages(files)

	var failed []*models.ImageInfo
	for _, r := range records {
		if r.Error != "" {
			failed = append(failed, r)
		}
	}
	o.update(func(s *State) {
		s.Records = records
		s.Failed = failed
		s.Cache = stats
		s.ETA = 0
	})

	if !o.checkpoint() {
		return nil, false
	}
	return records, true
}

func (o *Orchestrator) matchExact(valid []*models.ImageInfo) ([]*models.DuplicateGroup, bool) {
	if o.cfg.PerceptualOnly {
		return nil, true
	}
	if !o.checkpoint() {
		return nil, false
	}
	o.update(func(s *State) {
		s.Status = StatusExactMatching
		s.Percent = 55
		s.Message = fmt.Sprintf("finding exact duplicates among %d images", len(valid))
	})

	groups := match.FindExactDuplicates(valid, 1)
	o.update(func(s *State) {
		s.Groups = groups
		s.Percent = 60
	})
	return groups, true
}

func (o *Orchestrator) matchPerceptual(valid []*models.ImageInfo, exactGroups []*models.DuplicateGroup) ([]*models.DuplicateGroup, bool) {
	if o.cfg.ExactOnly {
		return nil, true
	}
	if !o.checkpoint() {
		return nil, false
	}

	exclude := match.ExactHashes(exactGroups)
	candidates := 0
	for _, img := range valid {
		if img.PerceptualHash != "" && !exclude[img.FileHash] {
			candidates++
		}
	}
	usingLSH := o.cfg.LSHMode == match.LSHOn ||
		(o.cfg.LSHMode == match.LSHAuto && candidates >= match.LSHAutoThreshold)

	o.update(func(s *State) {
		s.Status = StatusPerceptualMatching
		s.UsingLSH = usingLSH
		if usingLSH {
			s.Message = fmt.Sprintf("finding similar images with LSH (%d candidates)", candidates)
		} else {
			s.Message = fmt.Sprintf("finding similar images (%d candidates, %d comparisons)",
				candidates, candidates*(candidates-1)/2)
		}
	})

	lastUpdate := time.Now()
	groups := match.FindPerceptualDuplicates(valid, o.cfg.Threshold, exclude,
		o.cfg.LSHMode, len(exactGroups)+1,
		func(done, total int) {
			for o.paused.Load() && !o.cancelled.Load() {
				time.Sleep(pausePoll)
			}
			if time.Since(lastUpdate) < progressMinInterval && done != total {
				return
			}
			lastUpdate = time.Now()
			o.update(func(s *State) {
				if total > 0 {
					s.Percent = 60 + done*35/total
				}
				s.Message = fmt.Sprintf("comparing images: %d/%d", done, total)
			})
		})

	if !o.checkpoint() {
		return nil, false
	}
	return groups, true
}

func (o *Orchestrator) finish(exactGroups, perceptualGroups []*models.DuplicateGroup) {
	groups := append(exactGroups, perceptualGroups...)
	selections := ApplySelectionStrategy(groups, o.cfg.Strategy)

	dupes := 0
	for _, g := range groups {
		dupes += len(g.Images) - 1
	}

	o.update(func(s *State) {
		s.Status = StatusComplete
		s.Groups = groups
		s.Selections = selections
		s.Percent = 100
		s.Message = fmt.Sprintf("found %d duplicates in %d groups (%d exact, %d similar)",
			dupes, len(groups), len(exactGroups), len(perceptualGroups))
	})
}
