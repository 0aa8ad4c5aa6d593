// Package catalog loads the access point reference data once at startup.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dpup/prefab/logging"
	_ "github.com/lib/pq"

	"github.com/dpup/trailguide/server/internal/config"
	"github.com/dpup/trailguide/server/internal/lib/accesspoint"
	"github.com/dpup/trailguide/server/internal/lib/geo"
)

const selectAccessPoints = `SELECT id, name, category, latitude, longitude FROM access_points ORDER BY id`

// Source provides raw access point entries
type Source interface {
	AccessPoints(ctx context.Context) ([]accesspoint.AccessPoint, error)
}

// ConfigSource serves entries listed inline in configuration
type ConfigSource struct {
	entries []config.AccessPointConfig
}

// NewConfigSource creates a ConfigSource
func NewConfigSource(entries []config.AccessPointConfig) *ConfigSource {
	return &ConfigSource{entries: entries}
}

// AccessPoints returns the configured entries
func (s *ConfigSource) AccessPoints(ctx context.Context) ([]accesspoint.AccessPoint, error) {
	points := make([]accesspoint.AccessPoint, 0, len(s.entries))
	for _, e := range s.entries {
		points = append(points, accesspoint.AccessPoint{
			ID:         e.ID,
			Name:       e.Name,
			Category:   e.Category,
			Coordinate: e.Point(),
		})
	}
	return points, nil
}

// PostgresSource reads entries from the access_points table
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a PostgresSource over an open database
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// OpenPostgres opens and pings a postgres database
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

// AccessPoints queries every row of access_points in id order
func (s *PostgresSource) AccessPoints(ctx context.Context) ([]accesspoint.AccessPoint, error) {
	rows, err := s.db.QueryContext(ctx, selectAccessPoints)
	if err != nil {
		return nil, fmt.Errorf("query access points: %w", err)
	}
	defer rows.Close()

	var points []accesspoint.AccessPoint
	for rows.Next() {
		var ap accesspoint.AccessPoint
		if err := rows.Scan(&ap.ID, &ap.Name, &ap.Category, &ap.Coordinate.Latitude, &ap.Coordinate.Longitude); err != nil {
			return nil, fmt.Errorf("scan access point: %w", err)
		}
		points = append(points, ap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access points: %w", err)
	}
	return points, nil
}

// Build loads every entry from source into an immutable catalog. Entries with
// invalid coordinates are skipped with a warning.
func Build(ctx context.Context, source Source) (*accesspoint.Catalog, error) {
	ctx = logging.EnsureLogger(ctx)
	points, err := source.AccessPoints(ctx)
	if err != nil {
		return nil, err
	}

	valid := points[:0]
	for _, ap := range points {
		if !geo.IsValid(ap.Coordinate) {
			logging.Warnw(ctx, "Catalog: skipping access point with invalid coordinates",
				"id", ap.ID, "name", ap.Name, "lat", ap.Coordinate.Latitude, "lng", ap.Coordinate.Longitude)
			continue
		}
		valid = append(valid, ap)
	}

	catalog := accesspoint.NewCatalog(valid)
	logging.Infow(ctx, "Catalog: loaded access points", "count", catalog.Len(), "skipped", len(points)-len(valid))
	return catalog, nil
}

// Load builds the catalog from the configured source
func Load(ctx context.Context, cfg config.CatalogConfig) (*accesspoint.Catalog, error) {
	switch cfg.Source {
	case config.CatalogSourcePostgres:
		db, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return Build(ctx, NewPostgresSource(db))
	case config.CatalogSourceConfig, "":
		return Build(ctx, NewConfigSource(cfg.AccessPoints))
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}
