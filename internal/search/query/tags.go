// Package query parses free-text search queries into structured predicates:
// free text, package-name prefix, dependency filters, and a tag predicate.
package query

import (
	"sort"
	"strings"
)

// Tags prohibited by the default "regular search" predicate.
const (
	TagDiscontinued = "is:discontinued"
	TagUnlisted     = "is:unlisted"
	TagLegacy       = "is:legacy"
)

// TagsPredicate is a boolean filter over the tag namespace: each tag is
// either required (true) or prohibited (false). A tag appears at most once.
type TagsPredicate struct {
	values map[string]bool
}

// NewTagsPredicate creates a predicate from explicit required and prohibited
// tag lists.
func NewTagsPredicate(required, prohibited []string) TagsPredicate {
	p := TagsPredicate{values: make(map[string]bool, len(required)+len(prohibited))}
	for _, t := range required {
		p.values[t] = true
	}
	for _, t := range prohibited {
		p.values[t] = false
	}
	return p
}

// RegularSearchPredicate returns the default predicate applied to ordinary
// searches: discontinued, unlisted and legacy-only packages are hidden.
func RegularSearchPredicate() TagsPredicate {
	return NewTagsPredicate(nil, []string{TagDiscontinued, TagUnlisted, TagLegacy})
}

// ParseTagsPredicate builds a predicate from query-parameter values: a bare
// tag or a "+" prefix marks it required, a "-" prefix marks it prohibited.
func ParseTagsPredicate(values []string) TagsPredicate {
	p := TagsPredicate{values: make(map[string]bool, len(values))}
	for _, v := range values {
		switch {
		case strings.HasPrefix(v, "-"):
			p.values[v[1:]] = false
		case strings.HasPrefix(v, "+"):
			p.values[v[1:]] = true
		default:
			p.values[v] = true
		}
	}
	return p
}

// IsEmpty reports whether the predicate has no entries.
func (p TagsPredicate) IsEmpty() bool {
	return len(p.values) == 0
}

// HasTagRequired reports whether tag is marked required.
func (p TagsPredicate) HasTagRequired(tag string) bool {
	v, ok := p.values[tag]
	return ok && v
}

// HasTagProhibited reports whether tag is marked prohibited.
func (p TagsPredicate) HasTagProhibited(tag string) bool {
	v, ok := p.values[tag]
	return ok && !v
}

// Append merges other into p, with other taking precedence on conflicting
// tags. Neither input is modified.
func (p TagsPredicate) Append(other TagsPredicate) TagsPredicate {
	merged := TagsPredicate{values: make(map[string]bool, len(p.values)+len(other.values))}
	for t, v := range p.values {
		merged.values[t] = v
	}
	for t, v := range other.values {
		merged.values[t] = v
	}
	return merged
}

// Matches evaluates the predicate against a package's tag set: every
// required tag must be present and every prohibited tag absent. An empty
// predicate matches everything.
func (p TagsPredicate) Matches(tags map[string]struct{}) bool {
	for t, required := range p.values {
		_, present := tags[t]
		if required != present {
			return false
		}
	}
	return true
}

// MatchesList is Matches over a slice of tags.
func (p TagsPredicate) MatchesList(tags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return p.Matches(set)
}

// ToggleRequired cycles a tag between absent and required. Prohibited
// entries are never produced or touched by toggling.
func (p TagsPredicate) ToggleRequired(tag string) TagsPredicate {
	result := TagsPredicate{values: make(map[string]bool, len(p.values)+1)}
	for t, v := range p.values {
		result.values[t] = v
	}
	if v, ok := result.values[tag]; ok && v {
		delete(result.values, tag)
	} else {
		result.values[tag] = true
	}
	return result
}

// QueryParameters serialises the predicate for a URL: required tags as-is,
// prohibited tags prefixed with "-". Output is sorted for stability.
func (p TagsPredicate) QueryParameters() []string {
	params := make([]string, 0, len(p.values))
	for t, required := range p.values {
		if required {
			params = append(params, t)
		} else {
			params = append(params, "-"+t)
		}
	}
	sort.Strings(params)
	return params
}
