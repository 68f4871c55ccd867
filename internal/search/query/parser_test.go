package query

import (
	"reflect"
	"testing"
)

func TestParseQueryText(t *testing.T) {
	p := ParseQueryText("package:foo dependency:bar -is:discontinued")

	if p.PackagePrefix != "foo" {
		t.Errorf("PackagePrefix = %q, want %q", p.PackagePrefix, "foo")
	}
	if !reflect.DeepEqual(p.RefDependencies, []string{"bar"}) {
		t.Errorf("RefDependencies = %v, want [bar]", p.RefDependencies)
	}
	if !p.Tags.HasTagProhibited("is:discontinued") {
		t.Errorf("tag predicate should prohibit is:discontinued")
	}
	if p.Text != "" {
		t.Errorf("Text = %q, want empty", p.Text)
	}
}

func TestParseFirstPackagePrefixWins(t *testing.T) {
	p := ParseQueryText("package:foo package:bar")
	if p.PackagePrefix != "foo" {
		t.Errorf("PackagePrefix = %q, want %q", p.PackagePrefix, "foo")
	}
	// The second token is not re-extracted; it stays free text.
	if p.Text != "package:bar" {
		t.Errorf("Text = %q, want %q", p.Text, "package:bar")
	}
}

func TestParseAllDependencies(t *testing.T) {
	p := ParseQueryText("dependency*:collection dependency:args http client")
	if !reflect.DeepEqual(p.AllDependencies, []string{"collection"}) {
		t.Errorf("AllDependencies = %v, want [collection]", p.AllDependencies)
	}
	if !reflect.DeepEqual(p.RefDependencies, []string{"args"}) {
		t.Errorf("RefDependencies = %v, want [args]", p.RefDependencies)
	}
	if p.Text != "http client" {
		t.Errorf("Text = %q, want %q", p.Text, "http client")
	}
}

func TestParseTagVariants(t *testing.T) {
	p := ParseQueryText("is:flutter-favorite +platform:android -license:gpl chart")
	if !p.Tags.HasTagRequired("is:flutter-favorite") {
		t.Errorf("bare tag should be required")
	}
	if !p.Tags.HasTagRequired("platform:android") {
		t.Errorf("+ tag should be required")
	}
	if !p.Tags.HasTagProhibited("license:gpl") {
		t.Errorf("- tag should be prohibited")
	}
	if p.Text != "chart" {
		t.Errorf("Text = %q, want %q", p.Text, "chart")
	}
}

func TestParseUnknownTagPrefixStaysText(t *testing.T) {
	p := ParseQueryText("frobnicate:yes json")
	if !p.Tags.IsEmpty() {
		t.Errorf("unknown prefix must not produce tags: %v", p.Tags.QueryParameters())
	}
	if p.Text != "frobnicate:yes json" {
		t.Errorf("Text = %q, want original text", p.Text)
	}
}

func TestParseWhitespaceCollapse(t *testing.T) {
	p := ParseQueryText("   state\t management   ")
	if p.Text != "state management" {
		t.Errorf("Text = %q, want %q", p.Text, "state management")
	}
}

func TestParseEmptyQuery(t *testing.T) {
	p := ParseQueryText("")
	if p.HasFreeText() {
		t.Errorf("empty query should have no free text")
	}
	if p.PackagePrefix != "" || len(p.RefDependencies) != 0 || len(p.AllDependencies) != 0 {
		t.Errorf("empty query should parse to zero predicate: %+v", p)
	}
}

func TestStringRoundTrip(t *testing.T) {
	original := "package:foo dependency:bar dependency*:baz -is:legacy sdk:dart http client"
	p := ParseQueryText(original)
	reparsed := ParseQueryText(p.String())

	if reparsed.PackagePrefix != p.PackagePrefix {
		t.Errorf("PackagePrefix changed: %q vs %q", reparsed.PackagePrefix, p.PackagePrefix)
	}
	if !reflect.DeepEqual(reparsed.RefDependencies, p.RefDependencies) {
		t.Errorf("RefDependencies changed: %v vs %v", reparsed.RefDependencies, p.RefDependencies)
	}
	if !reflect.DeepEqual(reparsed.AllDependencies, p.AllDependencies) {
		t.Errorf("AllDependencies changed: %v vs %v", reparsed.AllDependencies, p.AllDependencies)
	}
	if !reflect.DeepEqual(reparsed.Tags.QueryParameters(), p.Tags.QueryParameters()) {
		t.Errorf("Tags changed: %v vs %v", reparsed.Tags.QueryParameters(), p.Tags.QueryParameters())
	}
	if reparsed.Text != p.Text {
		t.Errorf("Text changed: %q vs %q", reparsed.Text, p.Text)
	}
}

func TestToggleAndReparseIsStable(t *testing.T) {
	p := ParseQueryText("sdk:dart state management")
	toggled := p
	toggled.Tags = p.Tags.ToggleRequired("is:flutter-favorite")

	reparsed := ParseQueryText(toggled.String())
	if reparsed.Text != "state management" {
		t.Errorf("free text changed after toggle: %q", reparsed.Text)
	}
	if !reparsed.Tags.HasTagRequired("sdk:dart") || !reparsed.Tags.HasTagRequired("is:flutter-favorite") {
		t.Errorf("tags lost after toggle: %v", reparsed.Tags.QueryParameters())
	}
}

func TestExtractPhrases(t *testing.T) {
	phrases := ExtractPhrases(`fast "json parser" with "Zero Copy" decoding`)
	want := []string{"json parser", "zero copy"}
	if !reflect.DeepEqual(phrases, want) {
		t.Errorf("ExtractPhrases = %v, want %v", phrases, want)
	}
	if got := ExtractPhrases("no phrases here"); got != nil {
		t.Errorf("ExtractPhrases = %v, want nil", got)
	}
}
