package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/packdex/search-platform/internal/search/likes"
	"github.com/packdex/search-platform/internal/search/score"
	"github.com/packdex/search-platform/internal/search/token"
	"github.com/packdex/search-platform/pkg/metrics"
)

// DefaultTextSearchBudget bounds the optional expensive stages of a text
// search. The budget is advisory: stages already started run to completion.
const DefaultTextSearchBudget = 500 * time.Millisecond

// recencyPad is added to "updated within N days" filters so that documents
// refreshed by daily jobs near the boundary are not dropped by cron or
// timezone slack.
const recencyPad = 11*time.Hour + 59*time.Minute

// Config controls engine behaviour.
type Config struct {
	TextSearchBudget      time.Duration
	LikeRecomputeInterval time.Duration
}

// InMemoryIndex is the in-process package search index. One instance is held
// per server replica; all mutation goes through AddPackage/RemovePackage and
// is serialised by a single writer lock, while searches run concurrently
// under read locks.
type InMemoryIndex struct {
	mu      sync.RWMutex
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	packages map[string]*PackageDocument
	tagSets  map[string]map[string]struct{}

	nameIndex        *token.NameIndex
	descriptionIndex *token.Index
	readmeIndex      *token.Index
	apiSymbolIndex   *token.Index
	apiDocPageIndex  *token.Index
	likeTracker      *likes.Tracker

	ready           atomic.Bool
	lastUpdated     time.Time
	recentlyTouched []string

	now func() time.Time // test hook
}

// NewInMemoryIndex creates an empty engine with the given config, filling in
// defaults for zero values.
func NewInMemoryIndex(cfg Config) *InMemoryIndex {
	if cfg.TextSearchBudget == 0 {
		cfg.TextSearchBudget = DefaultTextSearchBudget
	}
	return &InMemoryIndex{
		cfg:              cfg,
		logger:           slog.Default().With("component", "package-index"),
		packages:         make(map[string]*PackageDocument),
		tagSets:          make(map[string]map[string]struct{}),
		nameIndex:        token.NewNameIndex(),
		descriptionIndex: token.NewIndex(),
		readmeIndex:      token.NewIndex(),
		apiSymbolIndex:   token.NewIndex(),
		apiDocPageIndex:  token.NewIndex(),
		likeTracker:      likes.NewTracker(cfg.LikeRecomputeInterval),
		now:              time.Now,
	}
}

// SetMetrics attaches the platform metric collectors. The engine works
// without them; this is called once at startup before the index is shared.
func (x *InMemoryIndex) SetMetrics(m *metrics.Metrics) {
	x.metrics = m
}

// Len returns the number of indexed packages.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.packages)
}

// IsReady reports whether the initial bulk load has completed.
func (x *InMemoryIndex) IsReady() bool {
	return x.ready.Load()
}

// MarkReady flips the engine into the ready state. The transition is one-way
// and idempotent; queries served before it simply see a partial corpus.
func (x *InMemoryIndex) MarkReady() {
	if !x.ready.Swap(true) {
		x.logger.Info("package index ready", "packages", x.Len())
	}
}

// AddPackage indexes a package document, wholesale replacing any previous
// document with the same name.
func (x *InMemoryIndex) AddPackage(doc *PackageDocument) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked(doc)
	x.likeTracker.UpdateScoresIfNeeded(false)
	x.observeMutationLocked("add", 1)
}

// AddPackages indexes many documents and forces a single like-score
// recompute at the end, so a bulk load does not trigger one per document.
func (x *InMemoryIndex) AddPackages(docs []*PackageDocument) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, doc := range docs {
		x.addLocked(doc)
	}
	x.likeTracker.UpdateScoresIfNeeded(true)
	x.observeMutationLocked("add", len(docs))
}

// RemovePackage removes all indexed state for the named package. Unknown
// names are a no-op.
func (x *InMemoryIndex) RemovePackage(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	doc, ok := x.packages[name]
	if !ok {
		return
	}
	x.dropIndexesLocked(doc)
	delete(x.packages, name)
	delete(x.tagSets, name)
	x.likeTracker.RemovePackage(name)
	x.lastUpdated = x.now().UTC()
	x.touchLocked("-" + name)
	x.observeMutationLocked("remove", 1)
}

func (x *InMemoryIndex) observeMutationLocked(operation string, n int) {
	if x.metrics == nil {
		return
	}
	x.metrics.PackagesUpdatedTotal.WithLabelValues(operation).Add(float64(n))
	x.metrics.IndexPackageCount.Set(float64(len(x.packages)))
}

func (x *InMemoryIndex) addLocked(doc *PackageDocument) {
	if old, ok := x.packages[doc.Package]; ok {
		x.dropIndexesLocked(old)
	}
	x.packages[doc.Package] = doc

	tagSet := make(map[string]struct{}, len(doc.Tags))
	for _, t := range doc.Tags {
		tagSet[t] = struct{}{}
	}
	x.tagSets[doc.Package] = tagSet

	x.nameIndex.Add(doc.Package)
	x.descriptionIndex.Add(doc.Package, doc.Description)
	x.readmeIndex.Add(doc.Package, doc.Readme)
	for _, page := range doc.ApiDocPages {
		id := QualifiedApiPageID(doc.Package, page.RelativePath)
		if len(page.Symbols) > 0 {
			x.apiSymbolIndex.Add(id, strings.Join(page.Symbols, " "))
		}
		if len(page.TextBlocks) > 0 {
			x.apiDocPageIndex.Add(id, strings.Join(page.TextBlocks, " "))
		}
	}

	x.likeTracker.TrackLikeCount(doc.Package, doc.LikeCount)
	x.lastUpdated = x.now().UTC()
	x.touchLocked(doc.Package)
}

// dropIndexesLocked reverses the text-index effects of a previously added
// document.
func (x *InMemoryIndex) dropIndexesLocked(doc *PackageDocument) {
	x.nameIndex.Remove(doc.Package)
	x.descriptionIndex.Remove(doc.Package)
	x.readmeIndex.Remove(doc.Package)
	for _, page := range doc.ApiDocPages {
		id := QualifiedApiPageID(doc.Package, page.RelativePath)
		x.apiSymbolIndex.Remove(id)
		x.apiDocPageIndex.Remove(id)
	}
}

// Search runs the full query pipeline: structural filters, optional timed
// text search, ranking, and pagination. It never fails; a query matching
// nothing returns an empty result.
func (x *InMemoryIndex) Search(ctx context.Context, q ServiceSearchQuery) *PackageSearchResult {
	x.mu.RLock()
	defer x.mu.RUnlock()
	now := x.now().UTC()

	candidates := make(map[string]struct{}, len(x.packages))
	for name := range x.packages {
		candidates[name] = struct{}{}
	}

	if prefix := strings.ToLower(q.Parsed.PackagePrefix); prefix != "" {
		for name := range candidates {
			if !strings.HasPrefix(strings.ToLower(name), prefix) {
				delete(candidates, name)
			}
		}
	}

	tags := q.Tags.Append(q.Parsed.Tags)
	if !tags.IsEmpty() {
		for name := range candidates {
			if !tags.Matches(x.tagSets[name]) {
				delete(candidates, name)
			}
		}
	}

	for _, dep := range q.Parsed.AllDependencies {
		for name := range candidates {
			if _, ok := x.packages[name].Dependencies[dep]; !ok {
				delete(candidates, name)
			}
		}
	}
	for _, dep := range q.Parsed.RefDependencies {
		for name := range candidates {
			kind, ok := x.packages[name].Dependencies[dep]
			if !ok || kind == DependencyTransitive {
				delete(candidates, name)
			}
		}
	}

	if q.MinPoints > 0 {
		for name := range candidates {
			if x.packages[name].GrantedPoints < q.MinPoints {
				delete(candidates, name)
			}
		}
	}

	if q.UpdatedInDays > 0 {
		threshold := now.Add(-(time.Duration(q.UpdatedInDays)*24*time.Hour + recencyPad))
		for name := range candidates {
			if !x.packages[name].Updated.After(threshold) {
				delete(candidates, name)
			}
		}
	}

	var highlighted *PackageHit
	if q.ConsiderHighlightedHit && q.Parsed.HasFreeText() {
		if name, ok := exactNameMatch(q.Parsed.Text, candidates); ok {
			delete(candidates, name)
			highlighted = &PackageHit{Package: name}
		}
	}

	var textScore score.Map
	var apiPageRefs map[string][]ApiPageRef
	hasText := q.Parsed.HasFreeText()
	if hasText {
		textScore, apiPageRefs = x.searchText(ctx, q.Parsed.Text, candidates, highlighted != nil)
		candidates = textScore.Keys()
	}

	hits := x.rank(q.Order, candidates, textScore, hasText)

	totalCount := len(hits)
	if highlighted != nil {
		totalCount++
	}

	offset := q.Offset
	if offset > len(hits) {
		offset = len(hits)
	}
	end := len(hits)
	if q.Limit > 0 && offset+q.Limit < end {
		end = offset + q.Limit
	}
	page := hits[offset:end]

	for i := range page {
		page[i].ApiPages = apiPageRefs[page[i].Package]
	}

	if highlighted != nil && !(q.IncludeHighlightedHit && q.Offset == 0) {
		highlighted = nil
	}

	return &PackageSearchResult{
		Timestamp:      now,
		TotalCount:     totalCount,
		HighlightedHit: highlighted,
		Packages:       page,
	}
}

// exactNameMatch finds a candidate whose name equals the query text,
// preferring a case-sensitive match with a case-insensitive fallback.
func exactNameMatch(text string, candidates map[string]struct{}) (string, bool) {
	if _, ok := candidates[text]; ok {
		return text, true
	}
	lower := strings.ToLower(text)
	for name := range candidates {
		if strings.ToLower(name) == lower {
			return name, true
		}
	}
	return "", false
}

// rank orders the candidate set by the requested SearchOrder. Scores are
// attached for the top and text orderings only.
func (x *InMemoryIndex) rank(order SearchOrder, candidates map[string]struct{}, textScore score.Map, hasText bool) []PackageHit {
	switch order {
	case OrderText:
		if !hasText {
			zero := make(score.Map, len(candidates))
			for name := range candidates {
				zero[name] = 0
			}
			return x.sortByScore(zero)
		}
		return x.sortByScore(textScore)
	case OrderCreated:
		return x.sortByTime(candidates, func(d *PackageDocument) time.Time { return d.Created })
	case OrderUpdated:
		return x.sortByTime(candidates, func(d *PackageDocument) time.Time { return d.Updated })
	case OrderPopularity:
		return x.sortByMetric(candidates, func(d *PackageDocument) float64 { return d.PopularityScore })
	case OrderLike:
		return x.sortByMetric(candidates, func(d *PackageDocument) float64 { return float64(d.LikeCount) })
	case OrderPoints:
		return x.sortByMetric(candidates, func(d *PackageDocument) float64 { return float64(d.GrantedPoints) })
	default: // OrderTop
		structural := make(score.Map, len(candidates))
		for name := range candidates {
			doc, ok := x.packages[name]
			if !ok {
				continue
			}
			popularity := (doc.PopularityScore + x.likeTracker.Score(name)) / 2
			points := float64(doc.GrantedPoints) / math.Max(1, float64(doc.MaxPoints))
			// The 0.4 floor keeps a weak structural score from
			// multiplying any package to zero.
			structural[name] = 0.4 + 0.6*(0.5*popularity+0.5*points)
		}
		overall := structural
		if hasText {
			overall = score.Multiply(structural, textScore)
		}
		return x.sortByScore(overall)
	}
}

func (x *InMemoryIndex) sortByScore(m score.Map) []PackageHit {
	hits := make([]PackageHit, 0, len(m))
	for name, v := range m {
		hits = append(hits, PackageHit{Package: name, Score: v})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return x.lessByUpdated(hits[i].Package, hits[j].Package)
	})
	return hits
}

func (x *InMemoryIndex) sortByMetric(candidates map[string]struct{}, metric func(*PackageDocument) float64) []PackageHit {
	hits := make([]PackageHit, 0, len(candidates))
	for name := range candidates {
		if _, ok := x.packages[name]; ok {
			hits = append(hits, PackageHit{Package: name})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		vi := metric(x.packages[hits[i].Package])
		vj := metric(x.packages[hits[j].Package])
		if vi != vj {
			return vi > vj
		}
		return x.lessByUpdated(hits[i].Package, hits[j].Package)
	})
	return hits
}

func (x *InMemoryIndex) sortByTime(candidates map[string]struct{}, timestamp func(*PackageDocument) time.Time) []PackageHit {
	hits := make([]PackageHit, 0, len(candidates))
	for name := range candidates {
		if _, ok := x.packages[name]; ok {
			hits = append(hits, PackageHit{Package: name})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		ti := timestamp(x.packages[hits[i].Package])
		tj := timestamp(x.packages[hits[j].Package])
		// Undated packages sort last.
		if ti.IsZero() != tj.IsZero() {
			return !ti.IsZero()
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].Package < hits[j].Package
	})
	return hits
}

// lessByUpdated is the shared tie-break: more recently updated first, then
// name for determinism.
func (x *InMemoryIndex) lessByUpdated(a, b string) bool {
	da, oka := x.packages[a]
	db, okb := x.packages[b]
	if oka && okb && !da.Updated.Equal(db.Updated) {
		return da.Updated.After(db.Updated)
	}
	return a < b
}
