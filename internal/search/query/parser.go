package query

import (
	"regexp"
	"strings"
)

// Tag prefixes recognised inside free-text queries. Anything else written in
// tag-like syntax stays ordinary free text.
var knownTagPrefixes = []string{"is", "sdk", "platform", "runtime", "license", "has", "show", "topic"}

var (
	packagePrefixRE = regexp.MustCompile(`\spackage:([_a-z0-9]+)`)
	refDependencyRE = regexp.MustCompile(`\sdependency:([_a-z0-9]+)`)
	allDependencyRE = regexp.MustCompile(`\sdependency\*:([_a-z0-9]+)`)
	tagTokenRE      = regexp.MustCompile(`\s([-+]?(?:` + strings.Join(knownTagPrefixes, "|") + `):[a-z0-9._\-]+)`)
	whitespaceRE    = regexp.MustCompile(`\s+`)
	phraseRE        = regexp.MustCompile(`"([^"]+)"`)
)

// ParsedQueryText is the structured form of one raw query string. It is an
// immutable snapshot; mutating helpers return copies.
type ParsedQueryText struct {
	// Text is the remaining free text after all recognised tokens were
	// extracted; empty when the query was tokens only.
	Text string

	// PackagePrefix restricts results to package names with this prefix.
	// Only the first package: token of the query is honoured.
	PackagePrefix string

	// RefDependencies lists dependency: filters (direct or dev usage).
	RefDependencies []string

	// AllDependencies lists dependency*: filters (any usage, including
	// transitive).
	AllDependencies []string

	// Tags holds the [+|-]<prefix>:<value> tokens of the query.
	Tags TagsPredicate
}

// ParseQueryText extracts the structured predicate from a raw query string.
// Unrecognised syntax is never an error; it remains free text.
func ParseQueryText(q string) ParsedQueryText {
	text := " " + q + " "

	var packagePrefix string
	if m := packagePrefixRE.FindStringSubmatchIndex(text); m != nil {
		packagePrefix = text[m[2]:m[3]]
		text = text[:m[0]] + " " + text[m[1]:]
	}

	var refDependencies []string
	text = refDependencyRE.ReplaceAllStringFunc(text, func(match string) string {
		refDependencies = append(refDependencies, match[strings.Index(match, ":")+1:])
		return " "
	})

	var allDependencies []string
	text = allDependencyRE.ReplaceAllStringFunc(text, func(match string) string {
		allDependencies = append(allDependencies, match[strings.Index(match, ":")+1:])
		return " "
	})

	var tagTokens []string
	text = tagTokenRE.ReplaceAllStringFunc(text, func(match string) string {
		tagTokens = append(tagTokens, strings.TrimSpace(match))
		return " "
	})

	return ParsedQueryText{
		Text:            strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " ")),
		PackagePrefix:   packagePrefix,
		RefDependencies: refDependencies,
		AllDependencies: allDependencies,
		Tags:            ParseTagsPredicate(tagTokens),
	}
}

// String reconstructs a canonical query string. Parsing the result yields an
// equivalent ParsedQueryText, so toggling a single tag and re-parsing leaves
// every other field untouched.
func (p ParsedQueryText) String() string {
	var parts []string
	if p.PackagePrefix != "" {
		parts = append(parts, "package:"+p.PackagePrefix)
	}
	for _, d := range p.RefDependencies {
		parts = append(parts, "dependency:"+d)
	}
	for _, d := range p.AllDependencies {
		parts = append(parts, "dependency*:"+d)
	}
	parts = append(parts, p.Tags.QueryParameters()...)
	if p.Text != "" {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, " ")
}

// HasFreeText reports whether any free text survived token extraction.
func (p ParsedQueryText) HasFreeText() bool {
	return p.Text != ""
}

// ExtractPhrases returns the quoted exact-match phrases of a query text,
// lowercased for case-insensitive substring filtering.
func ExtractPhrases(text string) []string {
	var phrases []string
	for _, m := range phraseRE.FindAllStringSubmatch(text, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			phrases = append(phrases, strings.ToLower(p))
		}
	}
	return phrases
}
