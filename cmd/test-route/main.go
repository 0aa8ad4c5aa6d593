package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpup/trailguide/server/internal/catalog"
	"github.com/dpup/trailguide/server/internal/clients/osrm"
	"github.com/dpup/trailguide/server/internal/config"
	"github.com/dpup/trailguide/server/internal/export"
	"github.com/dpup/trailguide/server/internal/lib/access"
	"github.com/dpup/trailguide/server/internal/lib/routing"
)

func main() {
	defaults := config.DefaultConfig()

	var (
		carURL   = flag.String("car-url", defaults.Routing.Engine.CarURL, "OSRM route service for driving")
		footURL  = flag.String("foot-url", defaults.Routing.Engine.FootURL, "OSRM route service for walking")
		originS  = flag.String("origin", "33.499600,126.531200", "Origin coordinates (lat,lon)")
		destS    = flag.String("dest", "33.361700,126.529200", "Destination coordinates (lat,lon)")
		category = flag.String("category", "mountain", "Destination category")
		maxKm    = flag.Float64("max-km", defaults.Routing.MaxAccessPointDistanceKm, "Access point search radius in km")
		timeout  = flag.Duration("timeout", 10*time.Second, "Request timeout")
		kmlOut   = flag.String("kml", "", "Write the leg as KML to this file")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Hybrid Route Test Tool\n\n")
		fmt.Printf("Fetches a hybrid car/foot leg from a live OSRM engine using the built-in access points.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -car-url=http://localhost:5000/route/v1/driving -foot-url=http://localhost:5001/route/v1/foot\n", os.Args[0])
		fmt.Printf("  %s -dest=\"33.458,126.942\" -category=viewpoint -kml=route.kml\n", os.Args[0])
		return
	}

	var originLat, originLon, destLat, destLon float64
	if _, err := fmt.Sscanf(*originS, "%f,%f", &originLat, &originLon); err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	if _, err := fmt.Sscanf(*destS, "%f,%f", &destLat, &destLon); err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	accessPoints, err := catalog.Load(ctx, defaults.Catalog)
	if err != nil {
		log.Fatalf("Failed to load access points: %v", err)
	}

	client := osrm.NewClient(osrm.Endpoints{Car: *carURL, Foot: *footURL}, *timeout)
	composer := routing.NewComposer(client, accessPoints)

	direct, rule := access.Evaluate(*category, nil)

	fmt.Printf("Hybrid Route Test\n")
	fmt.Printf("=================\n")
	fmt.Printf("Origin: %.6f, %.6f\n", originLat, originLon)
	fmt.Printf("Destination: %.6f, %.6f (%s)\n", destLat, destLon, *category)
	fmt.Printf("Direct by car: %v (%s)\n", direct, rule)
	fmt.Printf("\n")

	req := routing.HybridRequest{
		DestinationCategory:      *category,
		MaxAccessPointDistanceKm: *maxKm,
	}
	req.Origin.Latitude, req.Origin.Longitude = originLat, originLon
	req.Destination.Latitude, req.Destination.Longitude = destLat, destLon

	leg, err := composer.CalculateHybridLeg(ctx, req)
	if err != nil {
		log.Fatalf("CalculateHybridLeg failed (kind=%s, retryable=%v): %v", routing.KindOf(err), routing.IsRetryable(err), err)
	}

	fmt.Printf("Distance: %.1f km\n", leg.DistanceKm)
	fmt.Printf("Duration: %.1f minutes\n", leg.DurationMin)
	if leg.UsedAccessPoint != nil {
		fmt.Printf("Access point: %s (#%d, %s)\n", leg.UsedAccessPoint.Name, leg.UsedAccessPoint.ID, leg.UsedAccessPoint.Category)
	}
	for i, feature := range leg.Features {
		fmt.Printf("  %d. %-4s %d points\n", i+1, feature.Mode, len(feature.Geometry.Points))
	}

	if *kmlOut != "" {
		f, err := os.Create(*kmlOut)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *kmlOut, err)
		}
		defer f.Close()
		if err := export.WriteKML(f, "Hybrid route", &leg.RouteLeg, leg.UsedAccessPoint); err != nil {
			log.Fatalf("Failed to write KML: %v", err)
		}
		fmt.Printf("\nKML written to %s\n", *kmlOut)
	}
}
