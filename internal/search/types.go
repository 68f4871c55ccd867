// Package search implements the in-memory package index and ranking engine:
// it ingests package documents, maintains the text and name indices, applies
// structural filters, and serves ranked, paginated search results.
package search

import (
	"strings"
	"time"

	"github.com/packdex/search-platform/internal/search/query"
)

// DependencyType classifies how a package depends on another.
type DependencyType string

const (
	DependencyDirect     DependencyType = "direct"
	DependencyDev        DependencyType = "dev"
	DependencyTransitive DependencyType = "transitive"
)

// ApiDocPage is one page of generated API documentation belonging to a
// package, identified by its path relative to the package's doc root.
type ApiDocPage struct {
	RelativePath string   `json:"relative_path"`
	Symbols      []string `json:"symbols,omitempty"`
	TextBlocks   []string `json:"text_blocks,omitempty"`
}

// PackageDocument is the unit of ingestion: the full indexable state of one
// package. Documents are immutable once added; re-adding the same package
// name replaces all prior state.
type PackageDocument struct {
	Package         string                    `json:"package"`
	Description     string                    `json:"description,omitempty"`
	Readme          string                    `json:"readme,omitempty"`
	ApiDocPages     []ApiDocPage              `json:"api_doc_pages,omitempty"`
	Dependencies    map[string]DependencyType `json:"dependencies,omitempty"`
	Tags            []string                  `json:"tags,omitempty"`
	GrantedPoints   int                       `json:"granted_points"`
	MaxPoints       int                       `json:"max_points"`
	PopularityScore float64                   `json:"popularity_score"`
	LikeCount       int                       `json:"like_count"`
	Created         time.Time                 `json:"created"`
	Updated         time.Time                 `json:"updated"`
}

// apiPageSeparator joins a package name and a page path into the composite
// document id used by the symbol and doc-text indices.
const apiPageSeparator = "::"

// QualifiedApiPageID returns the composite index id of an API doc page.
func QualifiedApiPageID(pkg, relativePath string) string {
	return pkg + apiPageSeparator + relativePath
}

// SplitApiPageID splits a composite page id back into the owning package and
// the page path. The second value is empty for plain package ids.
func SplitApiPageID(id string) (pkg, relativePath string) {
	if i := strings.Index(id, apiPageSeparator); i >= 0 {
		return id[:i], id[i+len(apiPageSeparator):]
	}
	return id, ""
}

// SearchOrder selects the ranking applied to matching packages.
type SearchOrder string

const (
	OrderTop        SearchOrder = "top"
	OrderText       SearchOrder = "text"
	OrderCreated    SearchOrder = "created"
	OrderUpdated    SearchOrder = "updated"
	OrderPopularity SearchOrder = "popularity"
	OrderLike       SearchOrder = "like"
	OrderPoints     SearchOrder = "points"
)

// ParseSearchOrder maps a string to a SearchOrder, defaulting to OrderTop
// for empty input. The second value reports whether the input was valid.
func ParseSearchOrder(s string) (SearchOrder, bool) {
	switch SearchOrder(s) {
	case "":
		return OrderTop, true
	case OrderTop, OrderText, OrderCreated, OrderUpdated, OrderPopularity, OrderLike, OrderPoints:
		return SearchOrder(s), true
	default:
		return OrderTop, false
	}
}

// ServiceSearchQuery is a fully deserialised search request.
type ServiceSearchQuery struct {
	// Query is the raw free-text query; Parsed is its structured form.
	Query  string
	Parsed query.ParsedQueryText

	// Tags is the explicit predicate of the request, merged with (and
	// overridden by) the predicate parsed from the free text.
	Tags query.TagsPredicate

	Order         SearchOrder
	Offset        int
	Limit         int
	MinPoints     int
	UpdatedInDays int

	// ConsiderHighlightedHit removes an exact package-name match from the
	// ranked results; IncludeHighlightedHit surfaces it separately at the
	// top of the first page.
	ConsiderHighlightedHit bool
	IncludeHighlightedHit  bool
}

// NewServiceSearchQuery parses the raw query text and applies the defaults
// used by the public search surface: regular-search tag predicate, top
// ordering, and highlighted-hit handling on the first page.
func NewServiceSearchQuery(raw string) ServiceSearchQuery {
	parsed := query.ParseQueryText(raw)
	return ServiceSearchQuery{
		Query:                  raw,
		Parsed:                 parsed,
		Tags:                   query.RegularSearchPredicate(),
		Order:                  OrderTop,
		Limit:                  10,
		ConsiderHighlightedHit: parsed.HasFreeText() && parsed.PackagePrefix == "",
		IncludeHighlightedHit:  true,
	}
}

// ApiPageRef points a search hit at one matching API documentation page.
type ApiPageRef struct {
	RelativePath string `json:"relative_path"`
}

// PackageHit is one ranked search result.
type PackageHit struct {
	Package  string       `json:"package"`
	Score    float64      `json:"score,omitempty"`
	ApiPages []ApiPageRef `json:"api_pages,omitempty"`
}

// PackageSearchResult is the engine's reply to one ServiceSearchQuery.
type PackageSearchResult struct {
	Timestamp      time.Time   `json:"timestamp"`
	TotalCount     int         `json:"total_count"`
	HighlightedHit *PackageHit `json:"highlighted_hit,omitempty"`
	Packages       []PackageHit `json:"packages"`
}

// IndexInfo is an ephemeral snapshot of engine state for health and status
// display.
type IndexInfo struct {
	IsReady         bool      `json:"is_ready"`
	PackageCount    int       `json:"package_count"`
	LastUpdated     time.Time `json:"last_updated"`
	RecentlyTouched []string  `json:"recently_touched"`
}
