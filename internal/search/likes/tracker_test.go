package likes

import (
	"testing"
	"time"
)

func newTestTracker() *Tracker {
	t := NewTracker(0)
	return t
}

func TestPercentileScoresWithTies(t *testing.T) {
	tr := newTestTracker()
	counts := map[string]int{"a": 0, "b": 0, "c": 5, "d": 5, "e": 10}
	for pkg, c := range counts {
		tr.TrackLikeCount(pkg, c)
	}
	tr.UpdateScoresIfNeeded(true)

	if tr.Score("a") != tr.Score("b") {
		t.Errorf("tied counts must share a score: a=%v b=%v", tr.Score("a"), tr.Score("b"))
	}
	if tr.Score("c") != tr.Score("d") {
		t.Errorf("tied counts must share a score: c=%v d=%v", tr.Score("c"), tr.Score("d"))
	}
	if !(tr.Score("a") < tr.Score("c") && tr.Score("c") < tr.Score("e")) {
		t.Errorf("scores must be non-decreasing in like count: a=%v c=%v e=%v",
			tr.Score("a"), tr.Score("c"), tr.Score("e"))
	}
	if got, want := tr.Score("e"), 1.0; got != want {
		t.Errorf("highest count should score %v, got %v", want, got)
	}
}

func TestRecomputeThrottled(t *testing.T) {
	tr := newTestTracker()
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return current }

	tr.TrackLikeCount("a", 1)
	tr.UpdateScoresIfNeeded(true)
	first := tr.Score("a")

	// A change within the interval is not applied without force.
	tr.TrackLikeCount("b", 5)
	current = current.Add(time.Hour)
	tr.UpdateScoresIfNeeded(false)
	if tr.Score("b") != 0 {
		t.Errorf("recompute should be throttled within the interval")
	}

	// After the interval elapses, the pending change is applied.
	current = current.Add(12 * time.Hour)
	tr.UpdateScoresIfNeeded(false)
	if tr.Score("b") == 0 {
		t.Errorf("recompute should run after the interval")
	}
	if tr.Score("a") == first {
		t.Errorf("score for a should shift once b is ranked")
	}
}

func TestForceBypassesThrottle(t *testing.T) {
	tr := newTestTracker()
	tr.TrackLikeCount("a", 1)
	tr.UpdateScoresIfNeeded(true)
	tr.TrackLikeCount("b", 2)
	tr.UpdateScoresIfNeeded(true)
	if tr.Score("b") == 0 {
		t.Errorf("forced recompute must run immediately")
	}
}

func TestNoRecomputeWithoutChange(t *testing.T) {
	tr := newTestTracker()
	tr.TrackLikeCount("a", 3)
	tr.UpdateScoresIfNeeded(true)
	before := tr.Score("a")

	// Same count again: not a change, even when forced.
	tr.TrackLikeCount("a", 3)
	tr.UpdateScoresIfNeeded(true)
	if tr.Score("a") != before {
		t.Errorf("unchanged counts must not alter scores")
	}
}

func TestRemovePackage(t *testing.T) {
	tr := newTestTracker()
	tr.TrackLikeCount("a", 1)
	tr.TrackLikeCount("b", 2)
	tr.UpdateScoresIfNeeded(true)

	tr.RemovePackage("a")
	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}
	if tr.Score("a") != 0 {
		t.Errorf("removed package must not retain a score")
	}
	tr.UpdateScoresIfNeeded(true)
	if got := tr.Score("b"); got != 1.0 {
		t.Errorf("remaining package should re-rank to 1.0, got %v", got)
	}

	// Removing an unknown package is a no-op and does not mark dirty.
	tr2 := newTestTracker()
	tr2.RemovePackage("ghost")
	tr2.UpdateScoresIfNeeded(true)
	if tr2.Len() != 0 {
		t.Errorf("unexpected entries after no-op remove")
	}
}
