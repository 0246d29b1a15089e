package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/firewatch-service/internal/domain"
)

func TestSource_FetchEvents_Deterministic(t *testing.T) {
	s := NewSource()
	center := domain.GeoPoint{Lat: 38.5, Lon: -120.5}

	first, err := s.FetchEvents(context.Background(), center, 200, 1)
	require.NoError(t, err)
	second, err := s.FetchEvents(context.Background(), center, 200, 1)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second), "same location seeds the same fires")
	for i := range first {
		assert.Equal(t, first[i].Location, second[i].Location)
		assert.Equal(t, first[i].Confidence, second[i].Confidence)
		assert.Equal(t, first[i].PowerMW, second[i].PowerMW)
	}
}

func TestSource_FetchEvents_FireProneRegionYieldsFires(t *testing.T) {
	s := NewSource()
	center := domain.GeoPoint{Lat: 38.5, Lon: -120.5} // California

	detections, err := s.FetchEvents(context.Background(), center, 200, 1)
	require.NoError(t, err)
	require.NotEmpty(t, detections)

	for _, d := range detections {
		assert.Equal(t, SourceTag, d.Source, "synthetic data always carries the demo tag")
		assert.NoError(t, d.Location.Validate())
		assert.GreaterOrEqual(t, d.Confidence, 0.75)
		assert.Less(t, d.Confidence, 0.99)
		assert.GreaterOrEqual(t, d.PowerMW, 300.0)
		assert.Equal(t, center, d.Center)
		assert.InDelta(t, 200, d.SearchRadiusKm, 1e-9)
		assert.LessOrEqual(t, d.DistanceKm, 200*1.05)
	}
}

func TestSource_FetchEvents_ScatterStaysInRange(t *testing.T) {
	s := NewSource()

	// Centers where the raw scatter offset crosses the antimeridian or,
	// at high latitude, inflates past the longitude range.
	centers := []domain.GeoPoint{
		{Lat: 60, Lon: 179.9},
		{Lat: -60, Lon: -179.9},
		{Lat: 89, Lon: 0},
		{Lat: 0, Lon: 180},
	}

	for _, center := range centers {
		detections, err := s.FetchEvents(context.Background(), center, 400, 1)
		require.NoError(t, err, "center %+v", center)
		for _, d := range detections {
			assert.NoError(t, d.Location.Validate(), "center %+v produced %+v", center, d.Location)
		}
	}
}

func TestWrapLongitude(t *testing.T) {
	assert.InDelta(t, -179, wrapLongitude(181), 1e-9)
	assert.InDelta(t, 175, wrapLongitude(-185), 1e-9)
	assert.InDelta(t, 120, wrapLongitude(120), 1e-9)
	assert.InDelta(t, -180, wrapLongitude(180), 1e-9)
}

func TestSource_FetchEvents_RejectsInvalidCenter(t *testing.T) {
	s := NewSource()

	_, err := s.FetchEvents(context.Background(), domain.GeoPoint{Lat: 95, Lon: 0}, 100, 1)
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
