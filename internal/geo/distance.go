// Package geo provides great-circle distance and bounding-box helpers for
// radius queries.
package geo

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/emberline/firewatch-service/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used for distance conversion.
const EarthRadiusKm = 6371.0

// kmPerDegreeLat is the approximate north-south span of one degree of
// latitude, used for cheap rectangular prefilters.
const kmPerDegreeLat = 111.0

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b domain.GeoPoint) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// BoundingBox is a rectangular latitude/longitude region used to prefilter
// candidates before the exact haversine check.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoxAround derives the rectangle that circumscribes a radius around center:
// ±radius/111 degrees of latitude, ±radius/(111·cos(lat)) degrees of
// longitude. The box is wider than the circle; callers must still apply the
// exact distance filter to enforce the radius precisely.
func BoxAround(center domain.GeoPoint, radiusKm float64) BoundingBox {
	latDelta := radiusKm / kmPerDegreeLat

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	// Near the poles cos(lat) approaches zero and the longitude span of the
	// circle covers the full range.
	lonDelta := 180.0
	if cosLat > 1e-9 {
		lonDelta = radiusKm / (kmPerDegreeLat * cosLat)
		if lonDelta > 180 {
			lonDelta = 180
		}
	}

	return BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLon: center.Lon - lonDelta,
		MaxLon: center.Lon + lonDelta,
	}
}
