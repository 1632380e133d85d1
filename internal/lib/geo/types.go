package geo

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lng" yaml:"lng"`
}

// WorldXZ is a position on the scene's ground plane
type WorldXZ struct {
	X float64 `json:"x" yaml:"x"`
	Z float64 `json:"z" yaml:"z"`
}

// Anchor ties a geographic reference point to a world position. The scene
// is assumed to be north-up: world -Z points north and +X points east.
type Anchor struct {
	Reference         Point   `json:"reference" yaml:"reference"`
	Origin            WorldXZ `json:"origin" yaml:"origin"`
	CalibrationFactor float64 `json:"calibrationFactor" yaml:"calibration_factor" validate:"gt=0"`
}

// Deployed campus anchor: the library building
const (
	ReferenceLatitude        = 8.5644027
	ReferenceLongitude       = 76.8879752
	ReferenceWorldX          = 114.95
	ReferenceWorldZ          = -49.85
	DefaultCalibrationFactor = 0.6163
)

// DefaultAnchor returns the anchor of the deployed campus model
func DefaultAnchor() Anchor {
	return Anchor{
		Reference:         Point{Latitude: ReferenceLatitude, Longitude: ReferenceLongitude},
		Origin:            WorldXZ{X: ReferenceWorldX, Z: ReferenceWorldZ},
		CalibrationFactor: DefaultCalibrationFactor,
	}
}
