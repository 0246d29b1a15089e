package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		point   GeoPoint
		wantErr bool
	}{
		{name: "typical", point: GeoPoint{Lat: 35.0, Lon: -110.0}},
		{name: "origin", point: GeoPoint{Lat: 0, Lon: 0}},
		{name: "max corner", point: GeoPoint{Lat: 90, Lon: 180}},
		{name: "min corner", point: GeoPoint{Lat: -90, Lon: -180}},
		{name: "latitude too high", point: GeoPoint{Lat: 91, Lon: -110}, wantErr: true},
		{name: "longitude too low", point: GeoPoint{Lat: 35, Lon: -181}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if tt.wantErr {
				require.Error(t, err)
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseGeoPoint(t *testing.T) {
	p, err := ParseGeoPoint("35.0,-110.0")
	require.NoError(t, err)
	assert.Equal(t, GeoPoint{Lat: 35.0, Lon: -110.0}, p)

	p, err = ParseGeoPoint(" 90 , 180 ")
	require.NoError(t, err)
	assert.Equal(t, GeoPoint{Lat: 90, Lon: 180}, p)
}

func TestParseGeoPoint_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "single component", input: "35.0"},
		{name: "three components", input: "35.0,-110.0,12.0"},
		{name: "empty", input: ""},
		{name: "non numeric latitude", input: "north,-110.0"},
		{name: "non numeric longitude", input: "35.0,west"},
		{name: "latitude out of range", input: "91,-110"},
		{name: "longitude out of range", input: "35,-181"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGeoPoint(tt.input)
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestClampRadius(t *testing.T) {
	assert.Equal(t, 50.0, ClampRadius(50))
	assert.Equal(t, MaxRadiusKm, ClampRadius(5000))
	assert.Equal(t, MinRadiusKm, ClampRadius(0))
	assert.Equal(t, MinRadiusKm, ClampRadius(-10))
	assert.Equal(t, MaxRadiusKm, ClampRadius(MaxRadiusKm))
}

func TestDetection_Flatten(t *testing.T) {
	d := Detection{
		Location:   GeoPoint{Lat: 38.5, Lon: -120.5},
		Confidence: 0.85,
		PowerMW:    600,
		DistanceKm: 12.5,
		Source:     "VIIRS_SNPP_NRT",
	}

	flat := d.Flatten()
	assert.Equal(t, 38.5, flat.Latitude)
	assert.Equal(t, -120.5, flat.Longitude)
	assert.Equal(t, 0.85, flat.Confidence)
	assert.Equal(t, 600.0, flat.PowerMW)
	assert.Equal(t, 12.5, flat.DistanceKm)
	assert.Equal(t, "VIIRS_SNPP_NRT", flat.Source)
}
