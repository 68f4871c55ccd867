package query

import (
	"reflect"
	"testing"
)

func TestMatches(t *testing.T) {
	p := NewTagsPredicate([]string{"sdk:flutter"}, []string{"is:discontinued"})

	tests := []struct {
		name string
		tags []string
		want bool
	}{
		{"required present, prohibited absent", []string{"sdk:flutter", "license:mit"}, true},
		{"required missing", []string{"license:mit"}, false},
		{"prohibited present", []string{"sdk:flutter", "is:discontinued"}, false},
		{"both violated", []string{"is:discontinued"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.MatchesList(tt.tags); got != tt.want {
				t.Errorf("MatchesList(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestEmptyPredicateMatchesEverything(t *testing.T) {
	p := NewTagsPredicate(nil, nil)
	if !p.MatchesList(nil) {
		t.Errorf("empty predicate must match empty tag set")
	}
	if !p.MatchesList([]string{"is:discontinued"}) {
		t.Errorf("empty predicate must match any tag set")
	}
}

func TestAppendPrecedence(t *testing.T) {
	base := NewTagsPredicate(nil, []string{"is:discontinued"})
	override := NewTagsPredicate([]string{"is:discontinued"}, nil)

	merged := base.Append(override)
	if !merged.HasTagRequired("is:discontinued") {
		t.Errorf("appended predicate must win on conflicting tags")
	}

	// The inputs stay untouched.
	if !base.HasTagProhibited("is:discontinued") {
		t.Errorf("Append must not mutate the receiver")
	}
}

func TestToggleRequiredCycle(t *testing.T) {
	p := NewTagsPredicate(nil, []string{"is:unlisted"})

	toggled := p.ToggleRequired("sdk:dart")
	if !toggled.HasTagRequired("sdk:dart") {
		t.Fatalf("first toggle should mark the tag required")
	}
	back := toggled.ToggleRequired("sdk:dart")
	if back.HasTagRequired("sdk:dart") || back.HasTagProhibited("sdk:dart") {
		t.Errorf("second toggle should remove the tag entirely")
	}
	// Prohibited entries are never visited by the cycle.
	if !back.HasTagProhibited("is:unlisted") {
		t.Errorf("toggling must not touch prohibited entries")
	}
}

func TestQueryParametersRoundTrip(t *testing.T) {
	p := NewTagsPredicate([]string{"sdk:dart"}, []string{"is:legacy"})
	params := p.QueryParameters()
	want := []string{"-is:legacy", "sdk:dart"}
	if !reflect.DeepEqual(params, want) {
		t.Fatalf("QueryParameters = %v, want %v", params, want)
	}

	parsed := ParseTagsPredicate(params)
	if !parsed.HasTagRequired("sdk:dart") || !parsed.HasTagProhibited("is:legacy") {
		t.Errorf("round trip lost predicate entries: %v", parsed.QueryParameters())
	}
}

func TestParseTagsPredicatePlusPrefix(t *testing.T) {
	p := ParseTagsPredicate([]string{"+is:null-safe", "platform:web", "-is:legacy"})
	if !p.HasTagRequired("is:null-safe") {
		t.Errorf("+ prefix should mean required")
	}
	if !p.HasTagRequired("platform:web") {
		t.Errorf("bare tag should mean required")
	}
	if !p.HasTagProhibited("is:legacy") {
		t.Errorf("- prefix should mean prohibited")
	}
}

func TestRegularSearchPredicate(t *testing.T) {
	p := RegularSearchPredicate()
	if p.MatchesList([]string{"is:discontinued"}) {
		t.Errorf("regular search must hide discontinued packages")
	}
	if p.MatchesList([]string{"is:unlisted"}) {
		t.Errorf("regular search must hide unlisted packages")
	}
	if p.MatchesList([]string{"is:legacy"}) {
		t.Errorf("regular search must hide legacy-only packages")
	}
	if !p.MatchesList([]string{"sdk:dart"}) {
		t.Errorf("regular search must keep ordinary packages")
	}
}
