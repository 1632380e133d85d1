package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.Navigation.UpdateInterval)
	assert.Equal(t, 10.0, cfg.Navigation.ArrivalDistance)
	assert.Equal(t, 30.0, cfg.Navigation.RecalculationDistance)
	assert.Equal(t, 2*time.Second, cfg.Navigation.RecalculationCooldown)
	assert.Equal(t, 5.0, cfg.Navigation.SimplifyThreshold)
	assert.Equal(t, 1.4, cfg.Navigation.WalkingSpeed)
	assert.Equal(t, 0.6163, cfg.Geo.CalibrationFactor)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileEnvAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campusnav.yaml")
	content := `
graph:
  path: maps/campus.yaml
calibration:
  scale: {x: 2, y: 1, z: 2}
  translate: {x: 5, y: 0, z: -5}
  rotate: {y: 1.5707963}
navigation:
  recalculation_distance: 15
  recalculation_cooldown: 3s
  use_real_gps: false
geo:
  calibration_factor: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CAMPUSNAV__NAVIGATION__ARRIVAL_DISTANCE", "12.5")

	cfg, err := Load(path, map[string]any{"navigation.simulation_speed": 8})
	require.NoError(t, err)

	assert.Equal(t, "maps/campus.yaml", cfg.Graph.Path)
	assert.Equal(t, r3.Vec{X: 2, Y: 1, Z: 2}, cfg.Calibration.Scale)
	assert.Equal(t, r3.Vec{X: 5, Z: -5}, cfg.Calibration.Translate)
	assert.InDelta(t, 1.5707963, cfg.Calibration.Rotate.Y, 1e-9)
	assert.Equal(t, 15.0, cfg.Navigation.RecalculationDistance)
	assert.Equal(t, 3*time.Second, cfg.Navigation.RecalculationCooldown)
	assert.False(t, cfg.Navigation.UseRealGPS)
	assert.Equal(t, 12.5, cfg.Navigation.ArrivalDistance)
	assert.Equal(t, 8.0, cfg.Navigation.SimulationSpeed)
	assert.Equal(t, 0.5, cfg.Geo.CalibrationFactor)

	// Untouched values keep their defaults
	assert.Equal(t, time.Second, cfg.Navigation.UpdateInterval)
	assert.Equal(t, 1.0, cfg.Model.Scale)
	assert.Equal(t, "buildings.yaml", cfg.Buildings.CatalogPath)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load("", map[string]any{"navigation.simulation_speed": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SimulationSpeed")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
