// Command seedgen generates synthetic package documents for local
// development and load testing. It either writes them as JSON lines or
// uploads them straight to a running registryd.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/pkg/logger"
)

var (
	nouns      = []string{"http", "json", "yaml", "chart", "cache", "queue", "state", "router", "image", "auth", "socket", "crypto", "markdown", "animation", "storage"}
	suffixes   = []string{"kit", "tools", "helper", "client", "core", "lib", "plus", "lite", "pro", "x"}
	verbs      = []string{"parses", "renders", "caches", "streams", "validates", "animates", "serializes", "routes", "stores", "signs"}
	objects    = []string{"documents", "requests", "widgets", "payloads", "messages", "sessions", "images", "tokens", "charts", "configs"}
	tagChoices = []string{"sdk:dart", "sdk:flutter", "platform:android", "platform:ios", "platform:web", "license:osi-approved", "is:null-safe"}
)

func main() {
	count := flag.Int("count", 100, "number of packages to generate")
	seed := flag.Int64("seed", 42, "random seed")
	target := flag.String("target", "", "registry base URL; when empty, documents go to stdout as JSON lines")
	flag.Parse()

	logger.Setup("info", "text")
	log := logger.WithComponent("seedgen")
	rng := rand.New(rand.NewSource(*seed))

	seen := make(map[string]bool)
	generated := 0
	for generated < *count {
		doc := randomDocument(rng)
		if seen[doc.Package] {
			continue
		}
		seen[doc.Package] = true
		generated++

		if *target == "" {
			if err := json.NewEncoder(os.Stdout).Encode(doc); err != nil {
				log.Error("encoding document", "error", err)
				os.Exit(1)
			}
			continue
		}
		if err := upload(*target, doc); err != nil {
			log.Error("uploading document", "package", doc.Package, "error", err)
			os.Exit(1)
		}
	}
	log.Info("seed complete", "packages", generated)
}

func randomDocument(rng *rand.Rand) *search.PackageDocument {
	noun := nouns[rng.Intn(len(nouns))]
	name := fmt.Sprintf("%s_%s", noun, suffixes[rng.Intn(len(suffixes))])
	verb := verbs[rng.Intn(len(verbs))]
	object := objects[rng.Intn(len(objects))]

	tags := []string{tagChoices[rng.Intn(len(tagChoices))]}
	if rng.Float64() < 0.3 {
		tags = append(tags, tagChoices[rng.Intn(len(tagChoices))])
	}

	deps := map[string]search.DependencyType{}
	for i := 0; i < rng.Intn(4); i++ {
		dep := nouns[rng.Intn(len(nouns))] + "_core"
		kinds := []search.DependencyType{
			search.DependencyDirect, search.DependencyDev, search.DependencyTransitive,
		}
		deps[dep] = kinds[rng.Intn(len(kinds))]
	}

	maxPoints := 140
	updated := time.Now().UTC().Add(-time.Duration(rng.Intn(365*24)) * time.Hour)
	return &search.PackageDocument{
		Package:         name,
		Description:     fmt.Sprintf("A package that %s %s for %s apps.", verb, object, noun),
		Readme:          fmt.Sprintf("# %s\n\nThis package %s %s.\n", name, verb, object),
		Tags:            tags,
		Dependencies:    deps,
		GrantedPoints:   rng.Intn(maxPoints + 1),
		MaxPoints:       maxPoints,
		PopularityScore: rng.Float64(),
		LikeCount:       rng.Intn(5000),
		Created:         updated.Add(-time.Duration(rng.Intn(3*365*24)) * time.Hour),
		Updated:         updated,
	}
}

func upload(base string, doc *search.PackageDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	resp, err := http.Post(base+"/api/v1/packages", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("registry responded %s", resp.Status)
	}
	return nil
}
