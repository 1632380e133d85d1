package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// validate checks document struct tags; built once and shared
var validate = validator.New()

// costTolerance absorbs float noise when comparing edge costs to lengths
const costTolerance = 1e-9

// RoadGraph is an immutable, validated set of points and undirected
// connections. Build one with a Loader.
type RoadGraph struct {
	points      []Point
	connections []Connection
	index       map[PointID]int

	degraded            bool
	underestimatedEdges int
}

// Points returns the points in document order. Callers must not modify it.
func (g *RoadGraph) Points() []Point {
	return g.points
}

// Connections returns the normalized edge list. Callers must not modify it.
func (g *RoadGraph) Connections() []Connection {
	return g.connections
}

// Point looks up a point by id
func (g *RoadGraph) Point(id PointID) (Point, bool) {
	i, ok := g.index[id]
	if !ok {
		return Point{}, false
	}
	return g.points[i], true
}

// Has reports whether id names a point in the graph
func (g *RoadGraph) Has(id PointID) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of points
func (g *RoadGraph) Len() int {
	return len(g.points)
}

// Degraded reports whether connections were synthesized as a chain because
// the document carried none.
func (g *RoadGraph) Degraded() bool {
	return g.degraded
}

// UnderestimatedEdges counts edges whose cost is below the straight-line
// distance between their endpoints. A straight-line heuristic is not
// admissible on such graphs.
func (g *RoadGraph) UnderestimatedEdges() int {
	return g.underestimatedEdges
}

// Loader turns road graph documents into RoadGraphs
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader that reports problems to logger
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load normalizes and validates a document using a silent loader
func Load(doc Document) (*RoadGraph, error) {
	return NewLoader(nil).Load(doc)
}

// LoadFile reads a graph document from disk. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON.
func (l *Loader) LoadFile(path string) (*RoadGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read road graph %s: %w", path, err)
	}

	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	g, err := l.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load road graph %s: %w", path, err)
	}
	return g, nil
}

// Parse decodes a document in the given format and loads it
func (l *Loader) Parse(data []byte, format Format) (*RoadGraph, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML road graph: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON road graph: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported road graph format %q", format)
	}
	return l.Load(doc)
}

// Load normalizes doc into canonical points and connections and validates
// it. Legacy nodes become points, the edge list is taken from connections,
// edges or links (first present), and a missing edge list is replaced by a
// chain linking each point to its successor.
func (l *Loader) Load(doc Document) (*RoadGraph, error) {
	if err := validate.Struct(doc); err != nil {
		problems := formatValidationErrors(err)
		l.logger.Error("Road graph failed validation", zap.Strings("problems", problems))
		return nil, malformed(problems...)
	}

	points := doc.Points
	if points == nil && doc.Nodes != nil {
		points = make([]Point, len(doc.Nodes))
		for i, n := range doc.Nodes {
			points[i] = Point{
				ID:       n.ID,
				Position: r3.Vec{X: n.Position[0], Y: n.Position[1], Z: n.Position[2]},
			}
		}
	}

	if len(points) == 0 {
		l.logger.Error("Road graph has no points")
		return nil, malformed("graph has no points")
	}

	g := &RoadGraph{
		points: points,
		index:  make(map[PointID]int, len(points)),
	}

	var problems []string
	for i, p := range points {
		if _, dup := g.index[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("points[%d]: duplicate id %q", i, p.ID))
			continue
		}
		g.index[p.ID] = i
	}

	connections, key := firstPresent(doc)
	if connections == nil {
		connections = chain(points)
		g.degraded = true
		l.logger.Warn("Road graph has no connections, synthesized a chain in point order",
			zap.Int("points", len(points)),
			zap.Int("connections", len(connections)))
	}

	for i, c := range connections {
		from, okFrom := g.index[c.From]
		to, okTo := g.index[c.To]
		if !okFrom {
			problems = append(problems, fmt.Sprintf("%s[%d]: unknown point %q", key, i, c.From))
		}
		if !okTo {
			problems = append(problems, fmt.Sprintf("%s[%d]: unknown point %q", key, i, c.To))
		}
		if okFrom && okTo {
			length := r3.Norm(r3.Sub(points[from].Position, points[to].Position))
			if c.Cost < length*(1-costTolerance)-costTolerance {
				g.underestimatedEdges++
			}
		}
	}

	if len(problems) > 0 {
		l.logger.Error("Road graph failed validation", zap.Strings("problems", problems))
		return nil, malformed(problems...)
	}

	g.connections = connections

	if g.underestimatedEdges > 0 {
		l.logger.Warn("Road graph has edges cheaper than their straight-line length",
			zap.Int("edges", g.underestimatedEdges))
	}
	l.logger.Info("Loaded road graph",
		zap.Int("points", len(g.points)),
		zap.Int("connections", len(g.connections)),
		zap.Bool("degraded", g.degraded))

	return g, nil
}

// firstPresent returns the first edge list present in the document, even
// when it is empty, with the key it was read from.
func firstPresent(doc Document) ([]Connection, string) {
	switch {
	case doc.Connections != nil:
		return doc.Connections, "connections"
	case doc.Edges != nil:
		return doc.Edges, "edges"
	case doc.Links != nil:
		return doc.Links, "links"
	default:
		return nil, "connections"
	}
}

// chain links consecutive points with their straight-line distance as cost
func chain(points []Point) []Connection {
	connections := make([]Connection, 0, len(points))
	for i := 0; i+1 < len(points); i++ {
		p, q := points[i], points[i+1]
		connections = append(connections, Connection{
			From: p.ID,
			To:   q.ID,
			Cost: r3.Norm(r3.Sub(q.Position, p.Position)),
		})
	}
	return connections
}

// formatValidationErrors renders validator errors one line per field
func formatValidationErrors(err error) []string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Document.")
		switch e.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s: field is required", field))
		case "len":
			problems = append(problems, fmt.Sprintf("%s: must have exactly %s values", field, e.Param()))
		case "gte":
			problems = append(problems, fmt.Sprintf("%s: must be at least %s", field, e.Param()))
		default:
			problems = append(problems, fmt.Sprintf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return problems
}
