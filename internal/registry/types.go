// Package registry implements the ingestion side of the platform: it
// validates incoming package documents, persists them to the snapshot store,
// and publishes change events to Kafka for the search replicas to consume.
package registry

import (
	"time"

	"github.com/packdex/search-platform/internal/search"
)

// EventType distinguishes the two kinds of package events.
type EventType string

const (
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// PackageEvent is the message published on the package-events topic. Events
// are keyed by package name so partition ordering guarantees that each
// replica applies updates for a given package in publish order.
type PackageEvent struct {
	Type      EventType               `json:"type"`
	Package   string                  `json:"package"`
	Document  *search.PackageDocument `json:"document,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}
