package domain

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Feed limits imposed by the FIRMS area API.
const (
	MaxRadiusKm = 1000.0
	MinRadiusKm = 1.0
	MaxDayRange = 10
)

// GeoPoint is a WGS-84 latitude/longitude coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Validate rejects coordinates outside [-90,90] latitude or [-180,180]
// longitude. Out-of-range input is an error, never clamped.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "latitude", Value: strconv.FormatFloat(p.Lat, 'f', -1, 64), Reason: "must be in [-90,90]"}
	}
	if p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{Field: "longitude", Value: strconv.FormatFloat(p.Lon, 'f', -1, 64), Reason: "must be in [-180,180]"}
	}
	return nil
}

// ParseGeoPoint parses a "lat,lon" string. Exactly two components are
// required; both must be numeric and in range.
func ParseGeoPoint(s string) (GeoPoint, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return GeoPoint{}, &ValidationError{Field: "coordinates", Value: s, Reason: "expected exactly two components"}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return GeoPoint{}, &ValidationError{Field: "latitude", Value: parts[0], Reason: "not a number"}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return GeoPoint{}, &ValidationError{Field: "longitude", Value: parts[1], Reason: "not a number"}
	}
	p := GeoPoint{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// ClampRadius bounds a search radius to the feed's allowed range. Radius is
// clamped rather than rejected because the API silently caps it anyway.
func ClampRadius(radiusKm float64) float64 {
	if radiusKm < MinRadiusKm {
		return MinRadiusKm
	}
	if radiusKm > MaxRadiusKm {
		return MaxRadiusKm
	}
	return radiusKm
}

// Detection is a single satellite fire detection. All fields except
// AlertSent/AlertTime are write-once; ID and CreatedAt are assigned by the
// history store at persistence.
type Detection struct {
	ID            int64     `json:"id,omitempty"`
	DetectionTime time.Time `json:"timestamp"`
	Location      GeoPoint  `json:"location"`
	Confidence    float64   `json:"confidence"`
	PowerMW       float64   `json:"power_mw"`
	DistanceKm    float64   `json:"distance_km"`
	Source        string    `json:"source"`

	// Query provenance: where and how wide the search that produced this
	// detection was centered.
	SearchRadiusKm float64  `json:"search_radius_km"`
	Center         GeoPoint `json:"center"`

	AlertSent bool       `json:"alert_sent"`
	AlertTime *time.Time `json:"alert_time,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// QuerySpec bounds both an external feed query and a history-store query, so
// fetch and retrieval share the same radius and confidence semantics.
type QuerySpec struct {
	Center        GeoPoint
	RadiusKm      float64
	Window        time.Duration
	MinConfidence float64
}

// Validate checks the query center and normalizes nothing.
func (q QuerySpec) Validate() error {
	return q.Center.Validate()
}

// EventSource produces fire detections for a region. Implemented by the live
// FIRMS client and by the synthetic demo generator; which one runs is a
// configuration choice made once at startup.
type EventSource interface {
	// FetchEvents returns detections within radiusKm of center observed in
	// the last dayRange days. Implementations soft-fail per source and may
	// return a partial result; an empty slice with nil error means "no
	// fires observed".
	FetchEvents(ctx context.Context, center GeoPoint, radiusKm float64, dayRange int) ([]Detection, error)
}

// FlatRecord is the outbound collaborator contract: a flat detection record
// consumed verbatim by alerting and export collaborators.
type FlatRecord struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Confidence float64 `json:"confidence"`
	PowerMW    float64 `json:"power_mw"`
	DistanceKm float64 `json:"distance_km"`
	Source     string  `json:"source"`
	Timestamp  string  `json:"timestamp"`
}

// Flatten converts a Detection to its outbound flat form.
func (d Detection) Flatten() FlatRecord {
	return FlatRecord{
		Latitude:   d.Location.Lat,
		Longitude:  d.Location.Lon,
		Confidence: d.Confidence,
		PowerMW:    d.PowerMW,
		DistanceKm: d.DistanceKm,
		Source:     d.Source,
		Timestamp:  d.DetectionTime.UTC().Format(time.RFC3339),
	}
}
