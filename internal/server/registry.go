package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/packdex/search-platform/internal/registry"
	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/errors"
	"github.com/packdex/search-platform/pkg/health"
	"github.com/packdex/search-platform/pkg/metrics"
	"github.com/packdex/search-platform/pkg/middleware"
)

// maxPublishBodyBytes caps an ingestion request body. Readmes dominate the
// payload, so this tracks the registry readme limit with headroom for the
// rest of the document.
const maxPublishBodyBytes = 4 << 20

// RegistryAPI serves the write-side HTTP surface: package document ingestion
// and removal.
type RegistryAPI struct {
	publisher *registry.Publisher
	metrics   *metrics.Metrics
	checker   *health.Checker
}

func NewRegistryAPI(publisher *registry.Publisher, m *metrics.Metrics, checker *health.Checker) *RegistryAPI {
	return &RegistryAPI{
		publisher: publisher,
		metrics:   m,
		checker:   checker,
	}
}

// Routes builds the ingestion HTTP handler with the standard middleware
// chain applied.
func (s *RegistryAPI) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/packages", s.handlePublish)
	mux.HandleFunc("DELETE /api/v1/packages/{name}", s.handleRemove)
	mux.HandleFunc("GET /health/live", s.checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", s.checker.ReadyHandler())

	var h http.Handler = mux
	h = middleware.Timeout(30 * time.Second)(h)
	h = middleware.Metrics(s.metrics)(h)
	h = middleware.RequestID(h)
	return h
}

func (s *RegistryAPI) handlePublish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPublishBodyBytes)
	var doc search.PackageDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest,
			"malformed document: %v", err))
		return
	}
	if err := s.publisher.PublishDocument(r.Context(), &doc); err != nil {
		writeError(w, err)
		return
	}
	// The event propagates to replicas asynchronously.
	writeJSON(w, http.StatusAccepted, map[string]string{"package": doc.Package})
}

func (s *RegistryAPI) handleRemove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.publisher.RemoveDocument(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"package": name})
}
