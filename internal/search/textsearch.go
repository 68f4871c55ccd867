package search

import (
	"context"
	"strings"

	"github.com/packdex/search-platform/internal/search/query"
	"github.com/packdex/search-platform/internal/search/score"
	"github.com/packdex/search-platform/internal/search/token"
)

// Index weights: a hit in the package name counts full, hits in prose and
// API docs progressively less.
const (
	descriptionWeight = 0.90
	readmeWeight      = 0.75
	apiSymbolWeight   = 0.70
	apiDocPageWeight  = 0.40
)

// The API doc-text index is the most expensive stage and only adds value
// when nothing better matched. It is skipped once the core score clears
// coreShortcutScore or the symbol score clears symbolShortcutScore.
const (
	coreShortcutScore   = 0.4
	symbolShortcutScore = 0.3
)

// Weak tail matches are pruned relative to the best hit, with an absolute
// floor for near-empty result sets.
const (
	textPruneFraction = 0.2
	textPruneFloor    = 0.01
)

// maxApiPageRefs caps how many matching doc pages a single hit reports.
const maxApiPageRefs = 3

// searchText runs the multi-index text search under the configured time
// budget and returns per-package scores plus the best-matching API doc pages
// for each scored package. Caller holds the read lock.
func (x *InMemoryIndex) searchText(ctx context.Context, text string, candidates map[string]struct{}, hasHighlightedHit bool) (score.Map, map[string][]ApiPageRef) {
	words := token.SplitWords(text)
	if len(words) == 0 {
		return score.Map{}, nil
	}
	deadline := x.now().Add(x.cfg.TextSearchBudget)
	expired := func() bool {
		return ctx.Err() != nil || x.now().After(deadline)
	}
	skip := func(stage, reason string) {
		if x.metrics != nil {
			x.metrics.TextSearchStageSkips.WithLabelValues(stage, reason).Inc()
		}
		x.logger.Debug("text search stage skipped", "stage", stage, "reason", reason, "query", text)
	}

	nameScore := x.nameIndex.SearchWords(words, candidates)

	descriptionScore := score.Map{}
	readmeScore := score.Map{}
	if expired() {
		skip("prose", "budget")
	} else {
		descriptionScore = x.descriptionIndex.SearchWords(words, descriptionWeight, candidates)
		readmeScore = x.readmeIndex.SearchWords(words, readmeWeight, candidates)
	}
	core := score.Max(nameScore, descriptionScore, readmeScore)

	symbolPages := score.Map{}
	if expired() {
		skip("api-symbol", "budget")
	} else {
		symbolPages = x.apiSymbolIndex.SearchWords(words, apiSymbolWeight, nil)
	}

	docTextPages := score.Map{}
	switch {
	case hasHighlightedHit:
		skip("api-doc-text", "highlighted-hit")
	case core.MaxValue() >= coreShortcutScore:
		skip("api-doc-text", "core-shortcut")
	case symbolPages.MaxValue() >= symbolShortcutScore:
		skip("api-doc-text", "symbol-shortcut")
	case expired():
		skip("api-doc-text", "budget")
	default:
		docTextPages = x.apiDocPageIndex.SearchWords(words, apiDocPageWeight, nil)
	}

	// Fold page-level scores back onto owning packages, keeping the best
	// page score per package.
	pages := score.Max(symbolPages, docTextPages)
	apiScore := score.Map{}
	pkgPages := make(map[string]score.Map)
	for id, v := range pages {
		pkg, path := SplitApiPageID(id)
		if path == "" {
			continue
		}
		if v > apiScore[pkg] {
			apiScore[pkg] = v
		}
		if pkgPages[pkg] == nil {
			pkgPages[pkg] = score.Map{}
		}
		pkgPages[pkg][path] = v
	}
	apiScore = apiScore.Project(candidates)

	final := score.Max(core, apiScore).RemoveLowValues(textPruneFraction, textPruneFloor)

	if phrases := query.ExtractPhrases(text); len(phrases) > 0 {
		final = x.filterPhrases(final, phrases)
	}

	refs := make(map[string][]ApiPageRef, len(pkgPages))
	for pkg := range final {
		pageScores := pkgPages[pkg]
		if len(pageScores) == 0 {
			continue
		}
		for _, path := range pageScores.TopKeys(maxApiPageRefs) {
			refs[pkg] = append(refs[pkg], ApiPageRef{RelativePath: path})
		}
	}
	return final, refs
}

// filterPhrases drops packages whose name, description, and readme contain
// none of the required quoted phrases. The comparison is case-insensitive.
func (x *InMemoryIndex) filterPhrases(m score.Map, phrases []string) score.Map {
	out := make(score.Map, len(m))
next:
	for name, v := range m {
		doc, ok := x.packages[name]
		if !ok {
			continue
		}
		haystack := strings.ToLower(doc.Package + "\n" + doc.Description + "\n" + doc.Readme)
		for _, phrase := range phrases {
			if !strings.Contains(haystack, phrase) {
				continue next
			}
		}
		out[name] = v
	}
	return out
}
