package token

import (
	"regexp"
	"strings"

	"github.com/packdex/search-platform/internal/search/score"
)

// Tuned scoring constants for identifier matching. The character weight and
// pruning thresholds are calibrated relevance behaviour; changing them shifts
// the balance between near-exact and scattered partial matches.
const (
	nameCharWeight    = 0.2
	namePruneFraction = 0.5
	namePruneFloor    = 0.5
	nameShingleSize   = 3
)

// NameIndex scores candidate packages against query words using n-gram and
// prefix/postfix heuristics tuned for short identifier strings.
type NameIndex struct {
	collapsed map[string]string // package name -> name with underscores stripped
}

// NewNameIndex creates an empty NameIndex.
func NewNameIndex() *NameIndex {
	return &NameIndex{
		collapsed: make(map[string]string),
	}
}

// Add registers a package name.
func (n *NameIndex) Add(name string) {
	n.collapsed[name] = collapseName(name)
}

// AddAll registers many package names.
func (n *NameIndex) AddAll(names []string) {
	for _, name := range names {
		n.Add(name)
	}
}

// Remove drops a package name. Unknown names are a no-op.
func (n *NameIndex) Remove(name string) {
	delete(n.collapsed, name)
}

// Len returns the number of registered packages.
func (n *NameIndex) Len() int {
	return len(n.collapsed)
}

// SearchWords scores the candidate packages against the query words. If
// packages is nil all registered packages are candidates. Scores are in
// (0, 1] and results weaker than max(namePruneFraction * best, namePruneFloor)
// are pruned so only reasonably strong identifier matches survive.
func (n *NameIndex) SearchWords(words []string, packages map[string]struct{}) score.Map {
	qws := make([]queryWord, 0, len(words))
	for _, w := range words {
		w = collapseName(strings.ToLower(w))
		if w == "" {
			continue
		}
		// Whole-or-prefix match with an optional plural 's'.
		re := regexp.MustCompile(`^` + regexp.QuoteMeta(w) + `s?`)
		qws = append(qws, queryWord{text: w, prefix: re})
	}
	if len(qws) == 0 {
		return score.Map{}
	}

	result := make(score.Map)
	for pkg, collapsed := range n.collapsed {
		if packages != nil {
			if _, ok := packages[pkg]; !ok {
				continue
			}
		}
		if collapsed == "" {
			continue
		}
		if s := scoreName(collapsed, qws); s > 0 {
			result[pkg] = s
		}
	}
	return result.RemoveLowValues(namePruneFraction, namePruneFloor)
}

// queryWord is a pre-compiled query word: its collapsed text and the
// whole-or-prefix regular expression used for the fast path.
type queryWord struct {
	text   string
	prefix *regexp.Regexp
}

// scoreName computes the identifier match score of one collapsed package name
// against all query words.
func scoreName(collapsed string, qws []queryWord) float64 {
	matchedChars := make([]bool, len(collapsed))
	var matchedWeight, totalNgrams float64

	for _, qw := range qws {
		if loc := qw.prefix.FindStringIndex(collapsed); loc != nil {
			// Exact or prefix hit: count the whole word, skip the breakdown.
			matchedWeight += float64(len(qw.text))
			totalNgrams += float64(len(qw.text))
			for i := loc[0]; i < loc[1] && i < len(matchedChars); i++ {
				matchedChars[i] = true
			}
			continue
		}

		shingles := splitShingles(qw.text)
		hits := make([]bool, len(shingles))
		for i, sh := range shingles {
			totalNgrams++
			idx := strings.Index(collapsed, sh)
			if idx < 0 {
				continue
			}
			matchedWeight++
			hits[i] = true
			for j := idx; j < idx+len(sh) && j < len(matchedChars); j++ {
				matchedChars[j] = true
			}
		}
		// Contiguous matches at either end of the word outrank scattered
		// hits: award the longer of the two clean runs as bonus weight.
		prefixRun := 0
		for _, h := range hits {
			if !h {
				break
			}
			prefixRun++
		}
		suffixRun := 0
		for i := len(hits) - 1; i >= 0; i-- {
			if !hits[i] {
				break
			}
			suffixRun++
		}
		if suffixRun > prefixRun {
			prefixRun = suffixRun
		}
		matchedWeight += float64(prefixRun)
	}

	charCount := 0
	for _, m := range matchedChars {
		if m {
			charCount++
		}
	}
	s := (matchedWeight + nameCharWeight*float64(charCount)) /
		(totalNgrams + nameCharWeight*float64(len(collapsed)))
	if s > 1 {
		s = 1
	}
	return s
}

// splitShingles breaks a word into overlapping 3-character shingles; words of
// three characters or fewer are used whole.
func splitShingles(w string) []string {
	if len(w) <= nameShingleSize {
		return []string{w}
	}
	shingles := make([]string, 0, len(w)-nameShingleSize+1)
	for i := 0; i+nameShingleSize <= len(w); i++ {
		shingles = append(shingles, w[i:i+nameShingleSize])
	}
	return shingles
}

// collapseName strips underscores so that snake_case identifiers match their
// concatenated spellings.
func collapseName(name string) string {
	return strings.ReplaceAll(name, "_", "")
}
