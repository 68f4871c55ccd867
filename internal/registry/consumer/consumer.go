// Package consumer applies the package-events stream to a search replica's
// in-memory index. Events are keyed by package name, so within one package
// they arrive in publish order.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/packdex/search-platform/internal/registry"
	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/kafka"
)

// Invalidator drops cached search results after the index changes;
// satisfied by cache.ResultCache.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Applier turns package events into index mutations.
type Applier struct {
	index  *search.InMemoryIndex
	cache  Invalidator
	logger *slog.Logger
}

// NewApplier creates an Applier. cache may be nil when no result cache is
// configured.
func NewApplier(index *search.InMemoryIndex, cache Invalidator) *Applier {
	return &Applier{
		index:  index,
		cache:  cache,
		logger: slog.Default().With("component", "package-event-applier"),
	}
}

// HandleMessage is the kafka.MessageHandler for the package-events topic.
// Malformed events are logged and dropped rather than retried; the snapshot
// reload at next boot repairs any resulting gap.
func (a *Applier) HandleMessage(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[registry.PackageEvent](value)
	if err != nil {
		a.logger.Error("dropping undecodable package event", "key", string(key), "error", err)
		return nil
	}
	if err := a.apply(event); err != nil {
		a.logger.Error("dropping unappliable package event",
			"key", string(key),
			"type", event.Type,
			"error", err,
		)
		return nil
	}
	a.invalidateCache(ctx)
	return nil
}

func (a *Applier) apply(event registry.PackageEvent) error {
	switch event.Type {
	case registry.EventUpdated:
		if event.Document == nil {
			return fmt.Errorf("update event for %s without document", event.Package)
		}
		if event.Document.Package != event.Package {
			return fmt.Errorf("event key %s does not match document %s",
				event.Package, event.Document.Package)
		}
		a.index.AddPackage(event.Document)
		a.logger.Debug("package updated", "package", event.Package)
	case registry.EventRemoved:
		a.index.RemovePackage(event.Package)
		a.logger.Debug("package removed", "package", event.Package)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	return nil
}

func (a *Applier) invalidateCache(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if _, err := a.cache.Invalidate(ctx); err != nil {
		a.logger.Warn("cache invalidation failed", "error", err)
	}
}
