package transform

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func assertVecInDelta(t *testing.T, expected, actual r3.Vec, delta float64) {
	t.Helper()
	assert.InDelta(t, expected.X, actual.X, delta, "x")
	assert.InDelta(t, expected.Y, actual.Y, delta, "y")
	assert.InDelta(t, expected.Z, actual.Z, delta, "z")
}

func TestToWorld_IdentityReturnsInput(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("identity transforms leave points unchanged", prop.ForAll(
		func(x, y, z float64) bool {
			p := r3.Vec{X: x, Y: y, Z: z}
			return ToWorld(p, IdentityCalibration(), IdentityModelTransform()) == p
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}

func TestToWorld_PipelineOrder(t *testing.T) {
	calibration := Calibration{
		Scale:     r3.Vec{X: 2, Y: 1, Z: 3},
		Translate: r3.Vec{X: 0, Y: 5, Z: 0},
	}
	model := ModelTransform{
		Scale:     10,
		Translate: r3.Vec{X: 1, Y: 2, Z: 3},
	}

	// (1,1,1) -> scale (2,1,3) -> *10 (20,10,30) -> +model (21,12,33) -> +calibration (21,17,33)
	got := ToWorld(r3.Vec{X: 1, Y: 1, Z: 1}, calibration, model)
	assertVecInDelta(t, r3.Vec{X: 21, Y: 17, Z: 33}, got, 1e-9)
}

func TestToWorld_RotationBeforeScale(t *testing.T) {
	calibration := Calibration{
		Scale:  r3.Vec{X: 2, Y: 1, Z: 1},
		Rotate: Euler{Y: math.Pi / 2},
	}

	// Rotating (1,0,0) a quarter turn about Y yields (0,0,-1); the X scale
	// must not affect it because scaling happens after rotation.
	got := ToWorld(r3.Vec{X: 1}, calibration, IdentityModelTransform())
	assertVecInDelta(t, r3.Vec{X: 0, Y: 0, Z: -1}, got, 1e-9)
}

func TestRotate_XYZOrder(t *testing.T) {
	// With matrix Rx·Ry·Rz the Z rotation acts on the vector first.
	// (1,0,0) -Rz(90)-> (0,1,0) -Ry(90)-> (0,1,0) -Rx(90)-> (0,0,1)
	got := Rotate(r3.Vec{X: 1}, Euler{X: math.Pi / 2, Y: math.Pi / 2, Z: math.Pi / 2})
	assertVecInDelta(t, r3.Vec{X: 0, Y: 0, Z: 1}, got, 1e-9)
}

func TestPipeline_SetCalibration(t *testing.T) {
	pipeline := NewIdentityPipeline()
	p := r3.Vec{X: 3, Y: 4, Z: 5}

	assert.Equal(t, p, pipeline.ToWorld(p))

	calibration := IdentityCalibration()
	calibration.Translate = r3.Vec{X: 1}
	pipeline.SetCalibration(calibration)

	assert.Equal(t, r3.Vec{X: 4, Y: 4, Z: 5}, pipeline.ToWorld(p))
	assert.Equal(t, calibration, pipeline.Calibration())

	pipeline.SetModelTransform(ModelTransform{Scale: 2})
	assert.Equal(t, r3.Vec{X: 7, Y: 8, Z: 10}, pipeline.ToWorld(p))
	assert.Equal(t, 2.0, pipeline.ModelTransform().Scale)
}
