package transform

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// ToWorld maps a raw graph-space point into world space.
//
// The order is fixed: rotate in the point's original frame, scale by the
// calibration component-wise, scale by the model, add the model translation
// and finally add the calibration translation. Calibration offsets are
// therefore always expressed in final world units.
func ToWorld(p r3.Vec, calibration Calibration, model ModelTransform) r3.Vec {
	pos := Rotate(p, calibration.Rotate)

	pos = r3.Vec{
		X: pos.X * calibration.Scale.X,
		Y: pos.Y * calibration.Scale.Y,
		Z: pos.Z * calibration.Scale.Z,
	}
	pos = r3.Scale(model.Scale, pos)
	pos = r3.Add(pos, model.Translate)

	return r3.Add(pos, calibration.Translate)
}

// Rotate applies the Euler rotation to p. Z is applied first, then Y, then X,
// which is the vector form of the combined XYZ matrix.
func Rotate(p r3.Vec, e Euler) r3.Vec {
	if e.Z != 0 {
		p = r3.NewRotation(e.Z, axisZ).Rotate(p)
	}
	if e.Y != 0 {
		p = r3.NewRotation(e.Y, axisY).Rotate(p)
	}
	if e.X != 0 {
		p = r3.NewRotation(e.X, axisX).Rotate(p)
	}
	return p
}

// Pipeline owns the current calibration and model transform for one map.
// It is safe for concurrent use; readers always see a consistent pair.
type Pipeline struct {
	mu          sync.RWMutex
	calibration Calibration
	model       ModelTransform
}

// NewPipeline creates a pipeline with the given transforms
func NewPipeline(calibration Calibration, model ModelTransform) *Pipeline {
	return &Pipeline{
		calibration: calibration,
		model:       model,
	}
}

// NewIdentityPipeline creates a pipeline that maps graph space onto world space unchanged
func NewIdentityPipeline() *Pipeline {
	return NewPipeline(IdentityCalibration(), IdentityModelTransform())
}

// ToWorld maps p through the current calibration and model transform
func (p *Pipeline) ToWorld(v r3.Vec) r3.Vec {
	p.mu.RLock()
	calibration, model := p.calibration, p.model
	p.mu.RUnlock()

	return ToWorld(v, calibration, model)
}

// Calibration returns the current calibration
func (p *Pipeline) Calibration() Calibration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calibration
}

// SetCalibration replaces the calibration. Routes computed afterwards use it.
func (p *Pipeline) SetCalibration(calibration Calibration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calibration = calibration
}

// ModelTransform returns the current model transform
func (p *Pipeline) ModelTransform() ModelTransform {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// SetModelTransform replaces the model transform, typically after the scene
// has been recentered and rescaled on load.
func (p *Pipeline) SetModelTransform(model ModelTransform) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
}
