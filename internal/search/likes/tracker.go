// Package likes maintains percentile-ranked like scores for packages. Raw
// like counts are tracked incrementally; the percentile scores are
// recomputed in batch, throttled so a steady trickle of updates does not
// cause recomputation storms.
package likes

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultRecomputeInterval is the minimum time between two un-forced score
// recomputations.
const DefaultRecomputeInterval = 12 * time.Hour

// Tracker holds raw like counts and the derived percentile scores.
type Tracker struct {
	mu          sync.Mutex
	interval    time.Duration
	counts      map[string]int
	scores      map[string]float64
	changed     bool
	lastUpdated time.Time
	logger      *slog.Logger

	now func() time.Time // test hook
}

// NewTracker creates a Tracker with the given recompute interval; zero means
// DefaultRecomputeInterval.
func NewTracker(interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultRecomputeInterval
	}
	return &Tracker{
		interval: interval,
		counts:   make(map[string]int),
		scores:   make(map[string]float64),
		logger:   slog.Default().With("component", "like-tracker"),
		now:      time.Now,
	}
}

// TrackLikeCount upserts the raw like count for a package. The tracker is
// only marked dirty when the count actually differs.
func (t *Tracker) TrackLikeCount(pkg string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.counts[pkg]; ok && existing == count {
		return
	}
	t.counts[pkg] = count
	t.changed = true
}

// RemovePackage drops the package from the tracker.
func (t *Tracker) RemovePackage(pkg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.counts[pkg]; !ok {
		return
	}
	delete(t.counts, pkg)
	delete(t.scores, pkg)
	t.changed = true
}

// Score returns the current percentile score for a package in [0, 1], or 0
// when unknown or not yet computed.
func (t *Tracker) Score(pkg string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scores[pkg]
}

// Len returns the number of tracked packages.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}

// UpdateScoresIfNeeded recomputes percentile scores when something changed
// and the throttle interval has elapsed (or never ran). force bypasses the
// throttle and is used right after a bulk load.
func (t *Tracker) UpdateScoresIfNeeded(force bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.changed {
		return
	}
	if !force && !t.lastUpdated.IsZero() && t.now().Sub(t.lastUpdated) < t.interval {
		return
	}
	t.recomputeLocked()
}

// recomputeLocked assigns each package the percentile rank of its like
// count. Packages with equal counts share the exact same score regardless of
// sort order.
func (t *Tracker) recomputeLocked() {
	started := t.now()
	pkgs := make([]string, 0, len(t.counts))
	for pkg := range t.counts {
		pkgs = append(pkgs, pkg)
	}
	sort.SliceStable(pkgs, func(i, j int) bool {
		return t.counts[pkgs[i]] < t.counts[pkgs[j]]
	})

	t.scores = make(map[string]float64, len(pkgs))
	total := float64(len(pkgs))
	for i, pkg := range pkgs {
		if i > 0 && t.counts[pkg] == t.counts[pkgs[i-1]] {
			t.scores[pkg] = t.scores[pkgs[i-1]]
			continue
		}
		t.scores[pkg] = float64(i+1) / total
	}

	t.changed = false
	t.lastUpdated = t.now()
	t.logger.Debug("like scores recomputed",
		"packages", len(pkgs),
		"elapsed", t.now().Sub(started),
	)
}
