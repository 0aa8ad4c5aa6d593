package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dpup/trailguide/server/internal/cache"
	"github.com/dpup/trailguide/server/internal/catalog"
	"github.com/dpup/trailguide/server/internal/clients/osrm"
	"github.com/dpup/trailguide/server/internal/config"
	"github.com/dpup/trailguide/server/internal/events"
	"github.com/dpup/trailguide/server/internal/httpapi"
	"github.com/dpup/trailguide/server/internal/lib/navigation"
	"github.com/dpup/trailguide/server/internal/lib/routing"
	"github.com/dpup/trailguide/server/internal/report"
	"github.com/dpup/trailguide/server/internal/services"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.EnsureLogger(ctx)

	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	if err := report.SetupSentry(appConfig.Report, version); err != nil {
		log.Fatalf("Failed to initialize Sentry: %v", err)
	}
	defer report.FlushSentry()

	var reporter report.Reporter = report.Nop{}
	if appConfig.Report.SentryDSN != "" {
		reporter = report.SentryReporter{}
	}

	// Access points are loaded once; the catalog is immutable afterwards
	accessPoints, err := catalog.Load(ctx, appConfig.Catalog)
	if err != nil {
		log.Fatalf("Failed to load access point catalog: %v", err)
	}

	// Route engine client, wrapped with the route cache
	engine := osrm.NewClient(osrm.Endpoints{
		Car:  appConfig.Routing.Engine.CarURL,
		Foot: appConfig.Routing.Engine.FootURL,
	}, appConfig.Routing.RequestTimeout)

	routeCache := cache.NewCache()
	if appConfig.Routing.CacheCleanupInterval > 0 {
		routeCache.StartPeriodicCleanup(ctx, appConfig.Routing.CacheCleanupInterval)
	}
	fetcher := cache.NewCachedFetcher(engine, routeCache, appConfig.Routing.CacheTTL)
	prometheus.MustRegister(cache.NewStatsCollector(routeCache, "route"))

	composer := routing.NewComposer(fetcher, accessPoints,
		routing.WithConcurrentSubLegs(appConfig.Routing.ConcurrentSubLegs))
	routingService := services.NewRoutingService(composer, accessPoints, reporter,
		appConfig.Routing.RequestTimeout, appConfig.Routing.MaxAccessPointDistanceKm)

	var publisher events.Publisher = events.Nop{}
	if appConfig.Events.RabbitMQURL != "" {
		rabbit, err := events.DialRabbitMQ(appConfig.Events.RabbitMQURL, appConfig.Events.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit
		log.Printf("Publishing navigation events to exchange %q", appConfig.Events.Exchange)
	}

	evaluator := navigation.NewEvaluator(nil, navigation.ParseArrivalMode(appConfig.Navigation.ArrivalMode))
	navigationService := services.NewNavigationService(evaluator, routingService, publisher, appConfig.Navigation)

	handler := httpapi.NewHandler(routingService, navigationService, appConfig.Report.Environment, version)

	log.Printf("Trailguide server starting (version %s)", version)
	log.Printf("Access points loaded: %d (source: %s)", accessPoints.Len(), appConfig.Catalog.Source)
	log.Printf("Route engine: car=%s foot=%s", appConfig.Routing.Engine.CarURL, appConfig.Routing.Engine.FootURL)

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc("/v1/", handler.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/metrics", handler.ServeHTTP),
	)

	healthpb.RegisterHealthServer(server.ServiceRegistrar(), health.NewServer())

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig overlays prefab.yaml and PF__ environment variables on the defaults
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := map[string]any{
		"routing":    &appConfig.Routing,
		"navigation": &appConfig.Navigation,
		"catalog":    &appConfig.Catalog,
		"events":     &appConfig.Events,
		"report":     &appConfig.Report,
	}
	for name, target := range sections {
		if err := prefab.Config.Unmarshal(name, target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", name, err)
		}
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return appConfig
}
