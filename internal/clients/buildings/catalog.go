package buildings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

var validate = validator.New()

// Building is a named navigation target. Its position is given either in
// world space or as a GPS coordinate projected onto the ground plane.
type Building struct {
	Name     string     `yaml:"name" json:"name" validate:"required"`
	Aliases  []string   `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Position *r3.Vec    `yaml:"position,omitempty" json:"position,omitempty" validate:"required_without=Location"`
	Location *geo.Point `yaml:"location,omitempty" json:"location,omitempty" validate:"required_without=Position"`
}

type catalogFile struct {
	Buildings []Building `yaml:"buildings" validate:"dive"`
}

// Catalog resolves building names to world positions
type Catalog struct {
	byName  map[string]r3.Vec
	byAlias map[string]r3.Vec
	names   []string
	logger  *zap.Logger
}

// NewCatalog indexes buildings. Locations are projected with projector,
// which may be nil when every building carries a world position.
func NewCatalog(buildings []Building, projector *geo.Projector, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Catalog{
		byName:  make(map[string]r3.Vec, len(buildings)),
		byAlias: make(map[string]r3.Vec),
		logger:  logger,
	}

	for i, b := range buildings {
		if err := validate.Struct(b); err != nil {
			return nil, fmt.Errorf("building %d (%q): %w", i, b.Name, err)
		}

		var position r3.Vec
		switch {
		case b.Position != nil:
			position = *b.Position
		case projector == nil:
			return nil, fmt.Errorf("building %q has a GPS location but no projector is configured", b.Name)
		default:
			position = projector.GeoToWorld(b.Location.Latitude, b.Location.Longitude).ToVec()
		}

		if _, dup := c.byName[b.Name]; dup {
			return nil, fmt.Errorf("duplicate building name %q", b.Name)
		}
		c.byName[b.Name] = position
		c.names = append(c.names, b.Name)

		c.byAlias[normalize(b.Name)] = position
		for _, alias := range b.Aliases {
			c.byAlias[normalize(alias)] = position
		}
	}

	logger.Info("Loaded building catalog", zap.Int("buildings", len(c.names)))
	return c, nil
}

// LoadCatalog reads a YAML catalog of the form
//
//	buildings:
//	  - name: Central Library
//	    aliases: [library]
//	    position: {x: 114.95, y: 0, z: -49.85}
//
// Files ending in .kml are read as placemarks instead, see ParseKML.
func LoadCatalog(path string, projector *geo.Projector, logger *zap.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read building catalog %s: %w", path, err)
	}

	var file catalogFile
	if strings.EqualFold(filepath.Ext(path), ".kml") {
		file.Buildings, err = ParseKML(data)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse building catalog %s: %w", path, err)
	}
	if len(file.Buildings) == 0 {
		return nil, errors.New("building catalog is empty")
	}

	return NewCatalog(file.Buildings, projector, logger)
}

// FindBuildingByName returns the world position of a building. An exact
// name match wins; otherwise names and aliases are compared ignoring case
// and surrounding space.
func (c *Catalog) FindBuildingByName(name string) (r3.Vec, bool) {
	if position, ok := c.byName[name]; ok {
		return position, true
	}
	position, ok := c.byAlias[normalize(name)]
	if !ok {
		c.logger.Debug("Building not found", zap.String("name", name))
	}
	return position, ok
}

// Names returns the catalog's building names in file order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
