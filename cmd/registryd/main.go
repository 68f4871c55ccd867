// Command registryd runs the ingestion service: it accepts package document
// uploads over HTTP, persists them to the PostgreSQL snapshot store, and
// publishes change events to Kafka for the search replicas.
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

	"github.com/packdex/search-platform/internal/registry"
	"github.com/packdex/search-platform/internal/registry/snapshot"
	"github.com/packdex/search-platform/internal/server"
	"github.com/packdex/search-platform/pkg/config"
	"github.com/packdex/search-platform/pkg/health"
	"github.com/packdex/search-platform/pkg/kafka"
	"github.com/packdex/search-platform/pkg/logger"
	"github.com/packdex/search-platform/pkg/metrics"
	"github.com/packdex/search-platform/pkg/postgres"
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
	log := logger.WithComponent("registryd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port)
	}

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	store := snapshot.New(pg)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Error("preparing snapshot schema", "error", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PackageEvents)
	defer producer.Close()

	validator := registry.NewValidator(cfg.Registry)
	publisher := registry.NewPublisher(validator, store, producer)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pg.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	api := server.NewRegistryAPI(publisher, m, checker)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("registry api listening", "port", cfg.Server.Port)
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
