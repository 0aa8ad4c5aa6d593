package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/navigation"
)

// Catalog sources
const (
	CatalogSourceConfig   = "config"
	CatalogSourcePostgres = "postgres"
)

// Config represents the complete server configuration. Each section is
// unmarshalled from the matching top-level key of prefab.yaml.
type Config struct {
	Routing    RoutingConfig    `koanf:"routing" yaml:"routing"`
	Navigation NavigationConfig `koanf:"navigation" yaml:"navigation"`
	Catalog    CatalogConfig    `koanf:"catalog" yaml:"catalog"`
	Events     EventsConfig     `koanf:"events" yaml:"events"`
	Report     ReportConfig     `koanf:"report" yaml:"report"`
}

// RoutingConfig holds routing engine and composer settings
type RoutingConfig struct {
	Engine                   EngineConfig  `koanf:"engine" yaml:"engine"`
	RequestTimeout           time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	CacheTTL                 time.Duration `koanf:"cache_ttl" yaml:"cache_ttl"`
	CacheCleanupInterval     time.Duration `koanf:"cache_cleanup_interval" yaml:"cache_cleanup_interval"`
	ConcurrentSubLegs        bool          `koanf:"concurrent_sub_legs" yaml:"concurrent_sub_legs"`
	MaxAccessPointDistanceKm float64       `koanf:"max_access_point_distance_km" yaml:"max_access_point_distance_km"`
}

// EngineConfig holds the OSRM route service endpoint for each travel mode
type EngineConfig struct {
	CarURL  string `koanf:"car_url" yaml:"car_url"`
	FootURL string `koanf:"foot_url" yaml:"foot_url"`
}

// NavigationConfig holds evaluator thresholds and session behaviour
type NavigationConfig struct {
	Thresholds navigation.Thresholds `koanf:"thresholds" yaml:"thresholds"`
	// ArrivalMode is "repeat" (default) or "once"
	ArrivalMode string `koanf:"arrival_mode" yaml:"arrival_mode"`
	AutoAdvance bool   `koanf:"auto_advance" yaml:"auto_advance"`
	AutoReroute bool   `koanf:"auto_reroute" yaml:"auto_reroute"`
}

// CatalogConfig selects where access points are loaded from
type CatalogConfig struct {
	Source       string              `koanf:"source" yaml:"source"`
	PostgresDSN  string              `koanf:"postgres_dsn" yaml:"postgres_dsn"`
	AccessPoints []AccessPointConfig `koanf:"access_points" yaml:"access_points"`
}

// AccessPointConfig is one catalog entry listed inline in configuration
type AccessPointConfig struct {
	ID        int64   `koanf:"id" yaml:"id"`
	Name      string  `koanf:"name" yaml:"name"`
	Category  string  `koanf:"category" yaml:"category"`
	Latitude  float64 `koanf:"latitude" yaml:"latitude"`
	Longitude float64 `koanf:"longitude" yaml:"longitude"`
}

// Point returns the entry's coordinate
func (a AccessPointConfig) Point() geo.Point {
	return geo.Point{Latitude: a.Latitude, Longitude: a.Longitude}
}

// EventsConfig controls navigation event fan-out. An empty URL disables publishing.
type EventsConfig struct {
	RabbitMQURL string `koanf:"rabbitmq_url" yaml:"rabbitmq_url"`
	Exchange    string `koanf:"exchange" yaml:"exchange"`
}

// ReportConfig configures error reporting. An empty DSN disables Sentry.
type ReportConfig struct {
	SentryDSN   string `koanf:"sentry_dsn" yaml:"sentry_dsn"`
	Environment string `koanf:"environment" yaml:"environment"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Routing: RoutingConfig{
			Engine: EngineConfig{
				CarURL:  "http://localhost:5000/route/v1/driving",
				FootURL: "http://localhost:5001/route/v1/foot",
			},
			RequestTimeout:           5 * time.Second,
			CacheTTL:                 2 * time.Minute,
			CacheCleanupInterval:     5 * time.Minute,
			ConcurrentSubLegs:        true,
			MaxAccessPointDistanceKm: 15,
		},
		Navigation: NavigationConfig{
			Thresholds:  navigation.DefaultThresholds(),
			ArrivalMode: "repeat",
			AutoAdvance: true,
			AutoReroute: false,
		},
		Catalog: CatalogConfig{
			Source: CatalogSourceConfig,
			AccessPoints: []AccessPointConfig{
				{ID: 1, Name: "Gwaneumsa Trailhead", Category: "trailhead", Latitude: 33.4230, Longitude: 126.5510},
				{ID: 2, Name: "Seongpanak Trailhead", Category: "trailhead", Latitude: 33.3850, Longitude: 126.6200},
				{ID: 3, Name: "Eorimok Parking", Category: "parking", Latitude: 33.3925, Longitude: 126.4960},
				{ID: 4, Name: "Yeongsil Parking", Category: "parking", Latitude: 33.3600, Longitude: 126.4960},
			},
		},
		Events: EventsConfig{
			Exchange: "trailguide.navigation",
		},
		Report: ReportConfig{
			Environment: "development",
		},
	}
}

// Validate reports every configuration problem found
func (c *Config) Validate() error {
	var errs []error

	if c.Routing.Engine.CarURL == "" {
		errs = append(errs, errors.New("routing.engine.car_url is required"))
	}
	if c.Routing.Engine.FootURL == "" {
		errs = append(errs, errors.New("routing.engine.foot_url is required"))
	}
	if c.Routing.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("routing.request_timeout must be positive, got %s", c.Routing.RequestTimeout))
	}
	if c.Routing.MaxAccessPointDistanceKm < 0 {
		errs = append(errs, fmt.Errorf("routing.max_access_point_distance_km must not be negative, got %v", c.Routing.MaxAccessPointDistanceKm))
	}

	if err := c.Navigation.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("navigation.thresholds: %w", err))
	}
	switch c.Navigation.ArrivalMode {
	case "", "repeat", "once":
	default:
		errs = append(errs, fmt.Errorf("navigation.arrival_mode must be repeat or once, got %q", c.Navigation.ArrivalMode))
	}

	switch c.Catalog.Source {
	case CatalogSourceConfig:
	case CatalogSourcePostgres:
		if c.Catalog.PostgresDSN == "" {
			errs = append(errs, errors.New("catalog.postgres_dsn is required when catalog.source is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.source must be %s or %s, got %q", CatalogSourceConfig, CatalogSourcePostgres, c.Catalog.Source))
	}

	if c.Events.RabbitMQURL != "" && c.Events.Exchange == "" {
		errs = append(errs, errors.New("events.exchange is required when events.rabbitmq_url is set"))
	}

	return errors.Join(errs...)
}
