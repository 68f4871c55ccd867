package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/packdex/search-platform/internal/registry"
	"github.com/packdex/search-platform/internal/search"
)

func encode(t *testing.T, event registry.PackageEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("encoding event: %v", err)
	}
	return data
}

func TestApplyUpdateAndRemove(t *testing.T) {
	idx := search.NewInMemoryIndex(search.Config{})
	a := NewApplier(idx, nil)
	ctx := context.Background()

	update := registry.PackageEvent{
		Type:    registry.EventUpdated,
		Package: "logkit",
		Document: &search.PackageDocument{
			Package:     "logkit",
			Description: "structured logging",
		},
		Timestamp: time.Now().UTC(),
	}
	if err := a.HandleMessage(ctx, []byte("logkit"), encode(t, update)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after update", idx.Len())
	}

	remove := registry.PackageEvent{
		Type:      registry.EventRemoved,
		Package:   "logkit",
		Timestamp: time.Now().UTC(),
	}
	if err := a.HandleMessage(ctx, []byte("logkit"), encode(t, remove)); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after remove", idx.Len())
	}
}

func TestMalformedEventsAreDroppedNotRetried(t *testing.T) {
	idx := search.NewInMemoryIndex(search.Config{})
	a := NewApplier(idx, nil)
	ctx := context.Background()

	// Undecodable payload.
	if err := a.HandleMessage(ctx, []byte("x"), []byte("{not json")); err != nil {
		t.Errorf("undecodable event must not error (would block the partition): %v", err)
	}

	// Update without a document.
	noDoc := registry.PackageEvent{Type: registry.EventUpdated, Package: "ghost"}
	if err := a.HandleMessage(ctx, []byte("ghost"), encode(t, noDoc)); err != nil {
		t.Errorf("docless update must be dropped, not retried: %v", err)
	}

	// Key and document disagree.
	mismatch := registry.PackageEvent{
		Type:     registry.EventUpdated,
		Package:  "aa",
		Document: &search.PackageDocument{Package: "bb"},
	}
	if err := a.HandleMessage(ctx, []byte("aa"), encode(t, mismatch)); err != nil {
		t.Errorf("mismatched event must be dropped, not retried: %v", err)
	}

	if idx.Len() != 0 {
		t.Errorf("malformed events must not mutate the index, Len = %d", idx.Len())
	}
}
