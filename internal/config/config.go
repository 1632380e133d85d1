package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/transform"
)

// EnvPrefix marks environment variables that override configuration, e.g.
// CAMPUSNAV__NAVIGATION__ARRIVAL_DISTANCE=15
const EnvPrefix = "CAMPUSNAV__"

// Config represents the complete campus navigation configuration
type Config struct {
	Graph       GraphConfig              `yaml:"graph"`
	Calibration transform.Calibration    `yaml:"calibration"`
	Model       transform.ModelTransform `yaml:"model"`
	Geo         geo.Anchor               `yaml:"geo"`
	Navigation  NavigationConfig         `yaml:"navigation"`
	Buildings   BuildingsConfig          `yaml:"buildings"`
	Metrics     MetricsConfig            `yaml:"metrics"`
}

// GraphConfig locates the road graph document
type GraphConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// NavigationConfig holds the navigation session tunables. Distances are in
// world units.
type NavigationConfig struct {
	UpdateInterval        time.Duration `yaml:"update_interval" validate:"gt=0"`
	ArrivalDistance       float64       `yaml:"arrival_distance" validate:"gt=0"`
	RecalculationDistance float64       `yaml:"recalculation_distance" validate:"gt=0"`
	RecalculationCooldown time.Duration `yaml:"recalculation_cooldown" validate:"gte=0"`
	SmoothPath            bool          `yaml:"smooth_path"`
	SimplifyThreshold     float64       `yaml:"simplify_threshold" validate:"gte=0"`
	WalkingSpeed          float64       `yaml:"walking_speed" validate:"gt=0"`
	UseRealGPS            bool          `yaml:"use_real_gps"`
	SimulationSpeed       float64       `yaml:"simulation_speed" validate:"gte=1"`
	SimulationTick        time.Duration `yaml:"simulation_tick" validate:"gt=0"`
}

// BuildingsConfig holds the building catalog settings
type BuildingsConfig struct {
	CatalogPath string        `yaml:"catalog_path"`
	CacheTTL    time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// MetricsConfig toggles Prometheus metrics
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			Path: "road_graph.json",
		},
		Calibration: transform.IdentityCalibration(),
		Model:       transform.IdentityModelTransform(),
		Geo:         geo.DefaultAnchor(),
		Navigation:  DefaultNavigationConfig(),
		Buildings: BuildingsConfig{
			CatalogPath: "buildings.yaml",
			CacheTTL:    5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultNavigationConfig returns the navigation tunables of the deployed map
func DefaultNavigationConfig() NavigationConfig {
	return NavigationConfig{
		UpdateInterval:        time.Second,
		ArrivalDistance:       10,
		RecalculationDistance: 30,
		RecalculationCooldown: 2 * time.Second,
		SmoothPath:            true,
		SimplifyThreshold:     5,
		WalkingSpeed:          1.4,
		UseRealGPS:            true,
		SimulationSpeed:       5,
		SimulationTick:        100 * time.Millisecond,
	}
}

var validate = validator.New()

// Load builds a configuration from the defaults, then the YAML file at path
// (skipped when empty), then CAMPUSNAV__ environment variables, then
// overrides keyed by dotted path such as "navigation.arrival_distance".
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		problems := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			problems = append(problems, fmt.Sprintf("%s: failed %s=%s", e.Namespace(), e.Tag(), e.Param()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
