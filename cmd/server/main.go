package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/handlers"
	cacheinfra "github.com/asakaida/reviewlab/internal/infrastructure/cache"
	"github.com/asakaida/reviewlab/internal/infrastructure/config"
	"github.com/asakaida/reviewlab/internal/infrastructure/database"
	"github.com/asakaida/reviewlab/internal/infrastructure/logging"
	"github.com/asakaida/reviewlab/internal/infrastructure/metrics"
	"github.com/asakaida/reviewlab/internal/repositories/sqlstore"
	"github.com/asakaida/reviewlab/internal/services"
	"github.com/asakaida/reviewlab/internal/services/serializer"
	"github.com/asakaida/reviewlab/pkg/cache"
	"github.com/asakaida/reviewlab/pkg/cache/memorycache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	defaultEnv      = "dev"
	shutdownTimeout = 30 * time.Second
	metricsInterval = 10 * time.Second
	healthInterval  = 15 * time.Second
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		logrus.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	if err := run(cfg, log); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Info("Shutdown complete")
}

func run(cfg *config.Config, log *logrus.Logger) error {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.WithField("driver", cfg.Database.Driver).Info("Connected to database")

	if err := db.RunMigrations(); err != nil {
		return err
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(registry, collector)

	// Record cache
	var recordCache cache.Cache[map[string]any]
	var memCache *memorycache.Cache[map[string]any]
	cacheTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	if cfg.Cache.Enabled {
		memCache = memorycache.New(&memorycache.Config[map[string]any]{
			MaxSizeBytes:  cfg.Cache.MaxMemoryBytes,
			DefaultTTL:    cacheTTL,
			EnableMetrics: cfg.Cache.Metrics,
			SizeOf:        services.RecordSize,
		})
		collector.SetCache(memCache)
		recordCache = memCache
		log.WithFields(logrus.Fields{
			"max_bytes": cfg.Cache.MaxMemoryBytes,
			"ttl":       cacheTTL.String(),
		}).Info("Record cache enabled")
	}

	catalog := services.NewCatalogService(
		sqlstore.NewCustomerRepository(db.DB),
		sqlstore.NewItemRepository(db.DB),
		sqlstore.NewReviewRepository(db.DB),
		serializer.New(entities.Schema()),
		recordCache,
		cacheTTL,
		log,
	)

	// Instances sharing PostgreSQL evict each other's cached records
	if memCache != nil && cfg.Database.Driver == config.DriverPostgres {
		invalidator := cacheinfra.NewInvalidator(db.DB, cfg.Database.ConnectionString(), catalog, log)
		if err := invalidator.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start cache invalidation: %w", err)
		}
		defer invalidator.Stop()
		catalog.SetPublisher(invalidator)
		log.WithField("channel", cacheinfra.InvalidationChannel).Info("Cache invalidation listener started")
	}

	// HTTP API
	httpServer := &http.Server{
		Addr:              cfg.Server.Address(cfg.Server.Port),
		Handler:           handlers.NewHTTPHandler(catalog, log).Router(collector, exporter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC API
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handlers.RequestIDInterceptor(log),
		metrics.UnaryServerInterceptor(collector, exporter),
	))
	handlers.RegisterRecordServiceServer(grpcServer, handlers.NewRecordHandler(catalog, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	// Register reflection service (for grpcurl, etc.)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", cfg.Server.Address(cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// Prometheus endpoint
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              cfg.Server.Address(cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", httpServer.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.WithField("addr", grpcListener.Addr().String()).Info("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.WithField("addr", metricsServer.Addr).Info("Metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		watchHealth(ctx, db, healthServer, log)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(metricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				exporter.Update()
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Initiating graceful shutdown...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		err := errors.Join(httpServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))

		select {
		case <-stopped:
			log.Info("gRPC server stopped gracefully")
		case <-shutdownCtx.Done():
			log.Warn("Shutdown timeout exceeded, forcing stop")
			grpcServer.Stop()
		}
		return err
	})

	return g.Wait()
}

// watchHealth mirrors database health into the gRPC health service until ctx is done
func watchHealth(ctx context.Context, db *database.Database, hs *health.Server, log *logrus.Logger) {
	check := func() {
		serving := healthpb.HealthCheckResponse_SERVING
		if err := db.HealthCheck(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Database health check failed")
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", serving)
		hs.SetServingStatus(handlers.RecordServiceName, serving)
	}

	check()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
