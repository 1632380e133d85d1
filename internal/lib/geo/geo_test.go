package geo

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	// Main gate to the library, roughly 175m apart
	gate := Point{Latitude: 8.5631, Longitude: 76.8871}
	library := Point{Latitude: ReferenceLatitude, Longitude: ReferenceLongitude}

	distance, err := Distance(gate, library)
	require.NoError(t, err)
	assert.InDelta(t, 172, distance, 5)

	distance, err = Distance(library, library)
	require.NoError(t, err)
	assert.Equal(t, 0.0, distance)

	_, err = Distance(library, Point{Latitude: 200, Longitude: -300})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(ReferenceLatitude, ReferenceLongitude)
	require.NoError(t, err)
	assert.Equal(t, ReferenceLatitude, p.Latitude)

	_, err = NewPoint(91, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	_, err = NewPoint(0, -181)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestBearing(t *testing.T) {
	origin := Point{Latitude: 0, Longitude: 0}

	assert.InDelta(t, 0, Bearing(origin, Point{Latitude: 1}), 1e-9)
	assert.InDelta(t, math.Pi/2, Bearing(origin, Point{Longitude: 1}), 1e-9)
	assert.InDelta(t, math.Pi, math.Abs(Bearing(origin, Point{Latitude: -1})), 1e-9)
}

func TestDecodePolyline(t *testing.T) {
	points, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0].Latitude, 1e-5)
	assert.InDelta(t, -120.2, points[0].Longitude, 1e-5)
	assert.InDelta(t, 43.252, points[2].Latitude, 1e-5)

	_, err = DecodePolyline("")
	assert.Error(t, err)
}

func TestEncodePolyline_RoundTrip(t *testing.T) {
	walk := []Point{
		{Latitude: 8.56310, Longitude: 76.88710},
		{Latitude: 8.56380, Longitude: 76.88755},
		{Latitude: 8.56440, Longitude: 76.88798},
	}

	decoded, err := DecodePolyline(EncodePolyline(walk))
	require.NoError(t, err)
	require.Len(t, decoded, len(walk))
	for i := range walk {
		assert.InDelta(t, walk[i].Latitude, decoded[i].Latitude, 1e-5)
		assert.InDelta(t, walk[i].Longitude, decoded[i].Longitude, 1e-5)
	}
}

func TestProjector_ReferenceMapsToOrigin(t *testing.T) {
	projector := NewProjector(DefaultAnchor())

	world := projector.GeoToWorld(ReferenceLatitude, ReferenceLongitude)
	assert.Equal(t, ReferenceWorldX, world.X)
	assert.Equal(t, ReferenceWorldZ, world.Z)
}

func TestProjector_NorthIsNegativeZ(t *testing.T) {
	projector := NewProjector(DefaultAnchor())

	// 0.001 degrees of latitude is about 111.195m, scaled by 0.6163
	world := projector.GeoToWorld(ReferenceLatitude+0.001, ReferenceLongitude)
	assert.InDelta(t, ReferenceWorldX, world.X, 1e-6)
	assert.InDelta(t, ReferenceWorldZ-68.528, world.Z, 0.01)

	east := projector.GeoToWorld(ReferenceLatitude, ReferenceLongitude+0.001)
	assert.Greater(t, east.X, ReferenceWorldX)
	assert.InDelta(t, ReferenceWorldZ, east.Z, 0.01)
}

func TestProjector_DefaultsCalibrationFactor(t *testing.T) {
	anchor := DefaultAnchor()
	anchor.CalibrationFactor = 0

	assert.Equal(t, DefaultCalibrationFactor, NewProjector(anchor).Anchor().CalibrationFactor)
}

func TestProjector_WorldToGeoInvertsGeoToWorld(t *testing.T) {
	projector := NewProjector(DefaultAnchor())
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("inverse projection round trips within a millimetre", prop.ForAll(
		func(dLat, dLon float64) bool {
			lat := ReferenceLatitude + dLat
			lon := ReferenceLongitude + dLon

			world := projector.GeoToWorld(lat, lon)
			back := projector.WorldToGeo(world.X, world.Z)

			distance, err := Distance(Point{Latitude: lat, Longitude: lon}, back)
			return err == nil && distance < 1e-3
		},
		gen.Float64Range(-0.01, 0.01),
		gen.Float64Range(-0.01, 0.01),
	))

	properties.TestingRun(t)
}

func TestProjector_WorldToGeoAtOrigin(t *testing.T) {
	projector := NewProjector(DefaultAnchor())

	assert.Equal(t, DefaultAnchor().Reference, projector.WorldToGeo(ReferenceWorldX, ReferenceWorldZ))
}
