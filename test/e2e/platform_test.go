// Package e2e contains end-to-end tests that exercise the full platform
// stack: registryd → Kafka → searchd, with real Kafka, PostgreSQL, and
// Redis.
//
// Prerequisites:
//   - PostgreSQL running with the snapshot schema applied
//   - Kafka running with the package-events topic
//   - Redis running (optional, the replica degrades without it)
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

type e2eConfig struct {
	RegistryURL string
	SearchURL   string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		RegistryURL: envOrDefault("E2E_REGISTRY_URL", "http://localhost:8081"),
		SearchURL:   envOrDefault("E2E_SEARCH_URL", "http://localhost:8080"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// TestPlatformHealth verifies both services respond to their probes.
func TestPlatformHealth(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	services := []struct {
		name string
		url  string
	}{
		{"search liveness", cfg.SearchURL + "/health/live"},
		{"search readiness", cfg.SearchURL + "/health/ready"},
		{"registry liveness", cfg.RegistryURL + "/health/live"},
	}
	for _, svc := range services {
		t.Run(svc.name, func(t *testing.T) {
			resp, err := client.Get(svc.url)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
		})
	}
}

// TestPublishThenSearch publishes a package through the registry and polls
// the search API until the event has propagated through Kafka.
func TestPublishThenSearch(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	name := fmt.Sprintf("e2e_probe_%d", time.Now().Unix())
	doc := map[string]any{
		"package":     name,
		"description": "end to end probe package for the search pipeline",
		"max_points":  140,
	}
	body, _ := json.Marshal(doc)
	resp, err := client.Post(cfg.RegistryURL+"/api/v1/packages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Skipf("registry unavailable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("publish status = %d, want 202", resp.StatusCode)
	}
	defer func() {
		req, _ := http.NewRequest(http.MethodDelete, cfg.RegistryURL+"/api/v1/packages/"+name, nil)
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
		}
	}()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(cfg.SearchURL + "/api/v1/search?q=package:" + name)
		if err != nil {
			t.Skipf("search unavailable: %v", err)
		}
		var res struct {
			TotalCount int `json:"total_count"`
		}
		err = json.NewDecoder(resp.Body).Decode(&res)
		resp.Body.Close()
		if err == nil && res.TotalCount == 1 {
			return
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("package %s never became searchable", name)
}
