package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// PointID identifies a graph point. Numeric ids in source documents are
// kept in their decimal string form.
type PointID string

// UnmarshalJSON accepts both string and numeric ids
func (id *PointID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = PointID(s)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("point id must be a string or number: %s", string(data))
	}
	*id = PointID(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar id
func (id *PointID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("point id must be a scalar (line %d)", value.Line)
	}
	*id = PointID(value.Value)
	return nil
}

// Point is a walkable location in graph space
type Point struct {
	ID       PointID `json:"id" yaml:"id" validate:"required"`
	Position r3.Vec  `json:"position" yaml:"position"`
}

// Connection is an undirected, weighted edge between two points
type Connection struct {
	From PointID `json:"from" yaml:"from" validate:"required"`
	To   PointID `json:"to" yaml:"to" validate:"required"`
	Cost float64 `json:"cost" yaml:"cost" validate:"gte=0"`
}

// LegacyNode is the older authoring-tool format with array positions
type LegacyNode struct {
	ID       PointID   `json:"id" yaml:"id" validate:"required"`
	Position []float64 `json:"position" yaml:"position" validate:"len=3"`
}

// Document is a road graph as found on disk, before normalization. Any of
// connections, edges or links may carry the edge list.
type Document struct {
	Points      []Point      `json:"points,omitempty" yaml:"points,omitempty" validate:"omitempty,dive"`
	Nodes       []LegacyNode `json:"nodes,omitempty" yaml:"nodes,omitempty" validate:"omitempty,dive"`
	Connections []Connection `json:"connections,omitempty" yaml:"connections,omitempty" validate:"omitempty,dive"`
	Edges       []Connection `json:"edges,omitempty" yaml:"edges,omitempty" validate:"omitempty,dive"`
	Links       []Connection `json:"links,omitempty" yaml:"links,omitempty" validate:"omitempty,dive"`
}

// Format names a document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)
