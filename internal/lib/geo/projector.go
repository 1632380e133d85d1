package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Projector converts between GPS coordinates and the scene's ground plane
// around a single calibrated anchor.
type Projector struct {
	anchor Anchor
}

// NewProjector creates a projector for anchor. A non-positive calibration
// factor falls back to DefaultCalibrationFactor.
func NewProjector(anchor Anchor) *Projector {
	if anchor.CalibrationFactor <= 0 {
		anchor.CalibrationFactor = DefaultCalibrationFactor
	}
	return &Projector{anchor: anchor}
}

// Anchor returns the projector's anchor
func (p *Projector) Anchor() Anchor {
	return p.anchor
}

// GeoToWorld maps a GPS coordinate onto the ground plane. The distance and
// bearing from the reference are scaled by the calibration factor and laid
// out from the origin with north along -Z.
func (p *Projector) GeoToWorld(latitude, longitude float64) WorldXZ {
	target := Point{Latitude: latitude, Longitude: longitude}
	distance := haversine(p.anchor.Reference, target) * p.anchor.CalibrationFactor
	bearing := Bearing(p.anchor.Reference, target)

	return WorldXZ{
		X: p.anchor.Origin.X + distance*math.Sin(bearing),
		Z: p.anchor.Origin.Z - distance*math.Cos(bearing),
	}
}

// WorldToGeo is the inverse of GeoToWorld
func (p *Projector) WorldToGeo(x, z float64) Point {
	dx := x - p.anchor.Origin.X
	dz := z - p.anchor.Origin.Z
	if dx == 0 && dz == 0 {
		return p.anchor.Reference
	}

	distance := math.Hypot(dx, dz) / p.anchor.CalibrationFactor
	bearing := math.Atan2(dx, -dz)
	return Destination(p.anchor.Reference, bearing, distance)
}

// ToVec lifts a ground-plane position into world space at height zero
func (w WorldXZ) ToVec() r3.Vec {
	return r3.Vec{X: w.X, Z: w.Z}
}
