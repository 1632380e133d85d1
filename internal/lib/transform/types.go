package transform

import "gonum.org/v1/gonum/spatial/r3"

// Euler holds rotation angles in radians. They are applied as a single
// combined rotation in XYZ order (the matrix is Rx·Ry·Rz).
type Euler struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Calibration is the user-adjustable transform that aligns the road graph
// with the visual 3D model.
type Calibration struct {
	Scale     r3.Vec `json:"scale" yaml:"scale"`
	Translate r3.Vec `json:"translate" yaml:"translate"`
	Rotate    Euler  `json:"rotate" yaml:"rotate"`
}

// ModelTransform records how the scene content itself was recentered and
// uniformly scaled when it was loaded.
type ModelTransform struct {
	Scale     float64 `json:"scale" yaml:"scale"`
	Translate r3.Vec  `json:"translate" yaml:"translate"`
}

// Projector maps graph-space coordinates into world space
type Projector interface {
	ToWorld(p r3.Vec) r3.Vec
}

// IdentityCalibration returns a calibration that leaves points untouched
func IdentityCalibration() Calibration {
	return Calibration{Scale: r3.Vec{X: 1, Y: 1, Z: 1}}
}

// IdentityModelTransform returns a model transform that leaves points untouched
func IdentityModelTransform() ModelTransform {
	return ModelTransform{Scale: 1}
}
