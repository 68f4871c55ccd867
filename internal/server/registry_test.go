package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/packdex/search-platform/internal/registry"
	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/config"
	"github.com/packdex/search-platform/pkg/health"
	"github.com/packdex/search-platform/pkg/kafka"
)

type memStore struct {
	docs map[string]*search.PackageDocument
}

func (m *memStore) Upsert(ctx context.Context, doc *search.PackageDocument) error {
	m.docs[doc.Package] = doc
	return nil
}

func (m *memStore) Delete(ctx context.Context, name string) error {
	delete(m.docs, name)
	return nil
}

type memProducer struct {
	events []kafka.Event
}

func (m *memProducer) Publish(ctx context.Context, event kafka.Event) error {
	m.events = append(m.events, event)
	return nil
}

func newTestRegistryAPI() (*RegistryAPI, *memStore, *memProducer) {
	store := &memStore{docs: make(map[string]*search.PackageDocument)}
	producer := &memProducer{}
	validator := registry.NewValidator(config.RegistryConfig{
		MaxReadmeBytes:      1 << 20,
		MaxDescriptionChars: 4096,
	})
	publisher := registry.NewPublisher(validator, store, producer)
	return NewRegistryAPI(publisher, sharedMetrics(), health.NewChecker()), store, producer
}

func TestPublishEndpoint(t *testing.T) {
	api, store, producer := newTestRegistryAPI()
	h := api.Routes()

	body := `{"package":"logkit","description":"structured logging","granted_points":10,"max_points":20}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/packages", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, ok := store.docs["logkit"]; !ok {
		t.Errorf("document not persisted")
	}
	if len(producer.events) != 1 || producer.events[0].Key != "logkit" {
		t.Errorf("events = %+v, want one keyed logkit", producer.events)
	}
}

func TestPublishRejectsMalformedBody(t *testing.T) {
	api, store, _ := newTestRegistryAPI()
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/packages", strings.NewReader("{nope")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(store.docs) != 0 {
		t.Errorf("malformed body must not be persisted")
	}
}

func TestPublishRejectsInvalidDocument(t *testing.T) {
	api, _, producer := newTestRegistryAPI()
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/api/v1/packages",
			strings.NewReader(`{"package":"Bad-Name"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(producer.events) != 0 {
		t.Errorf("invalid document must not be announced")
	}
}

func TestRemoveEndpoint(t *testing.T) {
	api, store, producer := newTestRegistryAPI()
	store.docs["logkit"] = &search.PackageDocument{Package: "logkit"}

	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodDelete, "/api/v1/packages/logkit", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, ok := store.docs["logkit"]; ok {
		t.Errorf("document not deleted")
	}
	event := producer.events[0].Value.(registry.PackageEvent)
	if event.Type != registry.EventRemoved {
		t.Errorf("event type = %s, want removed", event.Type)
	}
}
