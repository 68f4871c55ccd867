// Package integration verifies the interaction between platform components:
// the search API wired to a real engine and event applier, and the snapshot
// store against a real PostgreSQL when one is available.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/packdex/search-platform/internal/registry"
	"github.com/packdex/search-platform/internal/registry/consumer"
	"github.com/packdex/search-platform/internal/registry/snapshot"
	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/internal/search/cache"
	"github.com/packdex/search-platform/internal/server"
	"github.com/packdex/search-platform/pkg/config"
	"github.com/packdex/search-platform/pkg/health"
	"github.com/packdex/search-platform/pkg/metrics"
	"github.com/packdex/search-platform/pkg/postgres"
)

var (
	metricsOnce   sync.Once
	sharedMetrics *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = metrics.New()
	})
	return sharedMetrics
}

// newReplica wires an engine, an event applier, and the HTTP search API the
// way searchd does, without Kafka or Redis.
func newReplica(docs []*search.PackageDocument) (*httptest.Server, *consumer.Applier) {
	idx := search.NewInMemoryIndex(search.Config{})
	idx.AddPackages(docs)
	idx.MarkReady()

	applier := consumer.NewApplier(idx, nil)
	api := server.NewSearchAPI(
		config.SearchConfig{DefaultLimit: 10, MaxLimit: 100},
		idx,
		cache.New(nil, 0, nil),
		testMetrics(),
		health.NewChecker(),
	)
	return httptest.NewServer(api.Routes()), applier
}

func getSearchResult(t *testing.T, url string) *search.PackageSearchResult {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	var res search.PackageSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return &res
}

func TestSearchAPIEndToEnd(t *testing.T) {
	ts, applier := newReplica([]*search.PackageDocument{
		{Package: "http_client", Description: "performs http requests"},
		{Package: "chart_kit", Description: "renders interactive charts"},
	})
	defer ts.Close()

	res := getSearchResult(t, ts.URL+"/api/v1/search?q=chart")
	if res.TotalCount != 1 || res.Packages[0].Package != "chart_kit" {
		t.Fatalf("result = %+v, want chart_kit", res)
	}

	// Apply an update through the event path and observe it in the API.
	event := registry.PackageEvent{
		Type:    registry.EventUpdated,
		Package: "gauge_kit",
		Document: &search.PackageDocument{
			Package:     "gauge_kit",
			Description: "renders radial charts and gauges",
		},
		Timestamp: time.Now().UTC(),
	}
	payload, _ := json.Marshal(event)
	if err := applier.HandleMessage(context.Background(), []byte("gauge_kit"), payload); err != nil {
		t.Fatalf("applying event: %v", err)
	}

	res = getSearchResult(t, ts.URL+"/api/v1/search?q=chart")
	if res.TotalCount != 2 {
		t.Fatalf("TotalCount after event = %d, want 2", res.TotalCount)
	}

	// And a removal.
	removal := registry.PackageEvent{Type: registry.EventRemoved, Package: "chart_kit"}
	payload, _ = json.Marshal(removal)
	if err := applier.HandleMessage(context.Background(), []byte("chart_kit"), payload); err != nil {
		t.Fatalf("applying removal: %v", err)
	}
	res = getSearchResult(t, ts.URL+"/api/v1/search?q=chart")
	if res.TotalCount != 1 || res.Packages[0].Package != "gauge_kit" {
		t.Fatalf("result after removal = %+v, want gauge_kit only", res)
	}
}

func TestIndexInfoEndToEnd(t *testing.T) {
	ts, _ := newReplica([]*search.PackageDocument{
		{Package: "solo_pkg", Description: "the only one"},
	})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/index-info")
	if err != nil {
		t.Fatalf("GET index-info: %v", err)
	}
	defer resp.Body.Close()
	var info search.IndexInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	if !info.IsReady || info.PackageCount != 1 {
		t.Errorf("info = %+v, want ready with 1 package", info)
	}
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            5432,
		Database:        envOrDefault("TEST_POSTGRES_DB", "packdex_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "packdex"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := snapshot.New(db)
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	doc := &search.PackageDocument{
		Package:     "roundtrip_pkg",
		Description: "integration round trip",
		LikeCount:   3,
	}
	t.Cleanup(func() { _ = store.Delete(ctx, doc.Package) })

	if err := store.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Get(ctx, doc.Package)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != doc.Description || got.LikeCount != doc.LikeCount {
		t.Errorf("round trip mismatch: %+v", got)
	}

	found := false
	if _, err := store.LoadAll(ctx, func(docs []*search.PackageDocument) error {
		for _, d := range docs {
			if d.Package == doc.Package {
				found = true
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if !found {
		t.Errorf("LoadAll did not return the stored document")
	}

	if err := store.Delete(ctx, doc.Package); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, doc.Package); err == nil {
		t.Errorf("Get after delete should fail")
	}
}
