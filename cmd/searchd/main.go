// Command searchd runs one search replica: it loads the package snapshot
// from PostgreSQL into the in-memory index, follows the package-events topic
// to stay current, and serves the search API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/packdex/search-platform/internal/registry/consumer"
	"github.com/packdex/search-platform/internal/registry/snapshot"
	"github.com/packdex/search-platform/internal/search"
	"github.com/packdex/search-platform/internal/search/cache"
	"github.com/packdex/search-platform/internal/server"
	"github.com/packdex/search-platform/pkg/config"
	"github.com/packdex/search-platform/pkg/health"
	"github.com/packdex/search-platform/pkg/kafka"
	"github.com/packdex/search-platform/pkg/logger"
	"github.com/packdex/search-platform/pkg/metrics"
	"github.com/packdex/search-platform/pkg/postgres"
	"github.com/packdex/search-platform/pkg/redis"
	"github.com/packdex/search-platform/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("searchd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port)
	}

	index := search.NewInMemoryIndex(search.Config{
		TextSearchBudget:      cfg.Search.TextSearchBudget,
		LikeRecomputeInterval: cfg.Search.LikeRecomputeInterval,
	})
	index.SetMetrics(m)

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	store := snapshot.New(pg)

	// The replica serves nothing useful without the snapshot, so the boot
	// load retries before giving up.
	err = resilience.Retry(ctx, "snapshot-load", resilience.RetryConfig{MaxAttempts: 5}, func() error {
		loaded, err := store.LoadAll(ctx, func(docs []*search.PackageDocument) error {
			index.AddPackages(docs)
			return nil
		})
		if err != nil {
			return err
		}
		log.Info("snapshot loaded", "packages", loaded)
		return nil
	})
	if err != nil {
		log.Error("loading snapshot", "error", err)
		os.Exit(1)
	}
	index.MarkReady()

	var resultCache *cache.ResultCache
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, serving without result cache", "error", err)
		resultCache = cache.New(nil, 0, m)
	} else {
		defer redisClient.Close()
		resultCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
	}

	applier := consumer.NewApplier(index, resultCache)
	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PackageEvents, applier.HandleMessage)
	go func() {
		if err := events.Start(ctx); err != nil {
			log.Error("package-events consumer stopped", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !index.IsReady() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index loading"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pg.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				// The cache is optional, so a Redis outage only degrades.
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	api := server.NewSearchAPI(cfg.Search, index, resultCache, m, checker)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("search api listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
