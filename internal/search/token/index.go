package token

import (
	"github.com/packdex/search-platform/internal/search/score"
)

// minSimilarity is the lowest n-gram overlap ratio at which an indexed token
// is still considered a partial match for a query word.
const minSimilarity = 0.25

// Index is a generic inverted index mapping token n-grams to weighted
// document ids. Documents are added and removed wholesale by id; an id may be
// a package name or a composite api-doc-page id.
type Index struct {
	docTokens   map[string]map[string]float64 // doc id -> token -> weight
	inverseIDs  map[string]map[string]float64 // token -> doc id -> weight
	ngramTokens map[string]map[string]struct{} // n-gram -> tokens containing it
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		docTokens:   make(map[string]map[string]float64),
		inverseIDs:  make(map[string]map[string]float64),
		ngramTokens: make(map[string]map[string]struct{}),
	}
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	return len(x.docTokens)
}

// Add tokenizes text and indexes it under id, replacing any previous content
// for the same id.
func (x *Index) Add(id, text string) {
	if _, exists := x.docTokens[id]; exists {
		x.Remove(id)
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return
	}
	x.docTokens[id] = tokens
	for t, w := range tokens {
		docs, ok := x.inverseIDs[t]
		if !ok {
			docs = make(map[string]float64)
			x.inverseIDs[t] = docs
			for g := range ngramSet(t) {
				ts, ok := x.ngramTokens[g]
				if !ok {
					ts = make(map[string]struct{})
					x.ngramTokens[g] = ts
				}
				ts[t] = struct{}{}
			}
		}
		docs[id] = w
	}
}

// Remove fully reverses the effect of Add for id. Unknown ids are a no-op.
func (x *Index) Remove(id string) {
	tokens, ok := x.docTokens[id]
	if !ok {
		return
	}
	delete(x.docTokens, id)
	for t := range tokens {
		docs, ok := x.inverseIDs[t]
		if !ok {
			continue
		}
		delete(docs, id)
		if len(docs) > 0 {
			continue
		}
		delete(x.inverseIDs, t)
		for g := range ngramSet(t) {
			if ts, ok := x.ngramTokens[g]; ok {
				delete(ts, t)
				if len(ts) == 0 {
					delete(x.ngramTokens, g)
				}
			}
		}
	}
}

// SearchWords scores documents against the query words. Every word must
// match (scores multiply), partial token matches are discounted by n-gram
// overlap, and the final values are scaled by weight. If limitToIDs is
// non-nil only those documents are considered.
func (x *Index) SearchWords(words []string, weight float64, limitToIDs map[string]struct{}) score.Map {
	perWord := make([]score.Map, 0, len(words))
	for _, w := range words {
		if len(w) < minWordLength {
			continue
		}
		wordScore := x.searchWord(w, limitToIDs)
		if len(wordScore) == 0 {
			return score.Map{}
		}
		perWord = append(perWord, wordScore)
	}
	if len(perWord) == 0 {
		return score.Map{}
	}
	return score.Multiply(perWord...).Scale(weight)
}

// searchWord scores documents for a single query word via exact and
// n-gram-overlap token matches.
func (x *Index) searchWord(w string, limitToIDs map[string]struct{}) score.Map {
	matches := make(map[string]float64)
	if _, ok := x.inverseIDs[w]; ok {
		matches[w] = 1
	}
	wordGrams := ngramSet(w)
	counts := make(map[string]int)
	for g := range wordGrams {
		for t := range x.ngramTokens[g] {
			counts[t]++
		}
	}
	for t, shared := range counts {
		if _, ok := matches[t]; ok {
			continue
		}
		tokenGrams := len(ngramSet(t))
		denom := len(wordGrams)
		if tokenGrams > denom {
			denom = tokenGrams
		}
		sim := float64(shared) / float64(denom)
		if sim >= minSimilarity {
			matches[t] = sim
		}
	}

	result := make(score.Map)
	for t, sim := range matches {
		for id, docWeight := range x.inverseIDs[t] {
			if limitToIDs != nil {
				if _, ok := limitToIDs[id]; !ok {
					continue
				}
			}
			if v := sim * docWeight; v > result[id] {
				result[id] = v
			}
		}
	}
	return result
}
