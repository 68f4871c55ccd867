package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/kafka"
)

// EventProducer publishes package events; satisfied by kafka.Producer.
type EventProducer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// DocumentStore persists package documents; satisfied by snapshot.Store.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *search.PackageDocument) error
	Delete(ctx context.Context, name string) error
}

// Publisher applies validated package changes: the snapshot store is the
// source of truth and is written first, then the change event goes out on
// Kafka. A failed publish leaves the store ahead of the stream; replicas
// converge on their next snapshot reload.
type Publisher struct {
	validator *Validator
	store     DocumentStore
	producer  EventProducer
	logger    *slog.Logger
	now       func() time.Time
}

func NewPublisher(validator *Validator, store DocumentStore, producer EventProducer) *Publisher {
	return &Publisher{
		validator: validator,
		store:     store,
		producer:  producer,
		logger:    slog.Default().With("component", "registry-publisher"),
		now:       time.Now,
	}
}

// PublishDocument validates, persists, and announces a package document.
func (p *Publisher) PublishDocument(ctx context.Context, doc *search.PackageDocument) error {
	if err := p.validator.ValidateDocument(doc); err != nil {
		return err
	}
	if err := p.store.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("persisting package %s: %w", doc.Package, err)
	}
	event := PackageEvent{
		Type:      EventUpdated,
		Package:   doc.Package,
		Document:  doc,
		Timestamp: p.now().UTC(),
	}
	if err := p.producer.Publish(ctx, kafka.Event{Key: doc.Package, Value: event}); err != nil {
		return fmt.Errorf("publishing update for %s: %w", doc.Package, err)
	}
	p.logger.Info("package published", "package", doc.Package)
	return nil
}

// RemoveDocument deletes a package from the store and announces the removal.
func (p *Publisher) RemoveDocument(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := p.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("deleting package %s: %w", name, err)
	}
	event := PackageEvent{
		Type:      EventRemoved,
		Package:   name,
		Timestamp: p.now().UTC(),
	}
	if err := p.producer.Publish(ctx, kafka.Event{Key: name, Value: event}); err != nil {
		return fmt.Errorf("publishing removal for %s: %w", name, err)
	}
	p.logger.Info("package removed", "package", name)
	return nil
}
