// Command seed populates a history database with synthetic detections for
// local development. It runs the real classify-then-persist path against the
// demo event source, so seeded rows look exactly like pipeline output while
// still carrying the "demo" source tag.
//
// Usage:
//
//	go run ./cmd/seed -db data/fire_history.db -lat 38.5 -lon -120.5 -radius 200
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/emberline/firewatch-service/internal/adapter/demo"
	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "data/fire_history.db", "history database path")
	lat := flag.Float64("lat", 38.5, "scan center latitude")
	lon := flag.Float64("lon", -120.5, "scan center longitude")
	radius := flag.Float64("radius", 200, "scan radius in km")
	rounds := flag.Int("rounds", 1, "number of scan rounds to seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	history, err := store.Open(*dbPath, logger)
	if err != nil {
		return err
	}
	defer history.Close()

	source := demo.NewSource()
	center := domain.GeoPoint{Lat: *lat, Lon: *lon}

	ctx := context.Background()
	total := 0
	for i := 0; i < *rounds; i++ {
		detections, err := source.FetchEvents(ctx, center, *radius, 1)
		if err != nil {
			return err
		}

		classified := domain.Classify(detections)
		batch := append(append(classified.High, classified.Moderate...), classified.Low...)
		ids, err := history.AddBatch(ctx, batch)
		if err != nil {
			return err
		}
		total += len(ids)
	}

	fmt.Printf("seeded %d detections into %s\n", total, *dbPath)
	return nil
}
