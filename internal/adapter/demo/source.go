// Package demo fabricates deterministic fire detections for development and
// offline use. Every detection it produces carries the source tag "demo" so
// downstream consumers can never mistake synthetic data for satellite data.
package demo

import (
	"context"
	"math"
	"math/rand"

	"github.com/emberline/firewatch-service/internal/domain"
	"github.com/emberline/firewatch-service/internal/geo"
)

// SourceTag marks every synthetic detection as non-authoritative.
const SourceTag = "demo"

// fireRegion is a known fire-prone area used to shape plausible output.
type fireRegion struct {
	center   domain.GeoPoint
	name     string
	avgFires int
}

var fireRegions = []fireRegion{
	{center: domain.GeoPoint{Lat: 38.5, Lon: -120.5}, name: "California", avgFires: 5},
	{center: domain.GeoPoint{Lat: -25.2, Lon: 133.8}, name: "Australia", avgFires: 4},
	{center: domain.GeoPoint{Lat: 0.0, Lon: 20.0}, name: "Central Africa", avgFires: 6},
	{center: domain.GeoPoint{Lat: -15.0, Lon: -65.0}, name: "Brazil", avgFires: 3},
	{center: domain.GeoPoint{Lat: 50.0, Lon: 100.0}, name: "Central Asia", avgFires: 2},
}

// Source implements domain.EventSource with fabricated detections. Output is
// seeded from the query location so repeated queries for the same region
// return the same fires.
type Source struct{}

// NewSource creates a synthetic event source.
func NewSource() *Source { return &Source{} }

// FetchEvents generates detections within radiusKm of center. Regions near a
// known fire-prone area yield more fires. Never fails.
func (s *Source) FetchEvents(_ context.Context, center domain.GeoPoint, radiusKm float64, _ int) ([]domain.Detection, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	radiusKm = domain.ClampRadius(radiusKm)

	seed := int64(center.Lat*100+center.Lon) % 100000
	rng := rand.New(rand.NewSource(seed))

	count := rng.Intn(3)
	for _, region := range fireRegions {
		if geo.HaversineKm(center, region.center) < radiusKm+300 {
			count = 2 + rng.Intn(region.avgFires)
			break
		}
	}

	detections := make([]domain.Detection, 0, count)
	for i := 0; i < count; i++ {
		// Scatter within the search radius.
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * math.Min(radiusKm, 400)
		latOffset := (dist / 111.0) * math.Cos(angle)
		lonOffset := (dist / (111.0 * math.Cos(center.Lat*math.Pi/180))) * math.Sin(angle)

		location := domain.GeoPoint{
			Lat: clampLatitude(center.Lat + latOffset),
			Lon: wrapLongitude(center.Lon + lonOffset),
		}
		detections = append(detections, domain.Detection{
			DetectionTime:  domain.Now().UTC(),
			Location:       location,
			Confidence:     0.75 + rng.Float64()*0.24,
			PowerMW:        float64(300 + rng.Intn(900)),
			DistanceKm:     geo.HaversineKm(center, location),
			Source:         SourceTag,
			SearchRadiusKm: radiusKm,
			Center:         center,
		})
	}
	return detections, nil
}

// wrapLongitude brings a scattered longitude back into [-180,180]. A center
// near the antimeridian, or a high latitude inflating the east-west offset,
// can push the raw sum past the range.
func wrapLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// clampLatitude bounds a scattered latitude to [-90,90].
func clampLatitude(lat float64) float64 {
	if lat > 90 {
		return 90
	}
	if lat < -90 {
		return -90
	}
	return lat
}
