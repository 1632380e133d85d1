package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestLoader_Parse_CanonicalJSON(t *testing.T) {
	data := []byte(`{
		"points": [
			{"id": 1, "position": {"x": 0, "y": 0, "z": 0}},
			{"id": "2", "position": {"x": 3, "y": 0, "z": 4}}
		],
		"connections": [{"from": 1, "to": 2, "cost": 5}]
	}`)

	g, err := NewLoader(zaptest.NewLogger(t)).Parse(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Len())
	assert.False(t, g.Degraded())
	assert.Equal(t, 0, g.UnderestimatedEdges())

	p, ok := g.Point("2")
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: 3, Y: 0, Z: 4}, p.Position)

	require.Len(t, g.Connections(), 1)
	assert.Equal(t, Connection{From: "1", To: "2", Cost: 5}, g.Connections()[0])
}

func TestLoader_Parse_LegacyNodesAndEdges(t *testing.T) {
	data := []byte(`{
		"nodes": [
			{"id": "a", "position": [1, 2, 3]},
			{"id": "b", "position": [4, 5, 6]}
		],
		"edges": [{"from": "a", "to": "b", "cost": 10}],
		"links": [{"from": "b", "to": "a", "cost": 99}]
	}`)

	g, err := Load(mustParseJSON(t, data))
	require.NoError(t, err)

	p, ok := g.Point("a")
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, p.Position)

	// edges wins over links because it is present first
	require.Len(t, g.Connections(), 1)
	assert.Equal(t, 10.0, g.Connections()[0].Cost)
}

func TestLoader_Parse_LinksFallback(t *testing.T) {
	doc := Document{
		Points: []Point{{ID: "a"}, {ID: "b", Position: r3.Vec{X: 1}}},
		Links:  []Connection{{From: "a", To: "b", Cost: 1}},
	}

	g, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, g.Connections(), 1)
	assert.Equal(t, PointID("a"), g.Connections()[0].From)
}

func TestLoader_Load_ChainFallback(t *testing.T) {
	doc := Document{
		Points: []Point{
			{ID: "1", Position: r3.Vec{}},
			{ID: "2", Position: r3.Vec{X: 3, Z: 4}},
			{ID: "3", Position: r3.Vec{X: 3, Y: 2, Z: 4}},
		},
	}

	g, err := Load(doc)
	require.NoError(t, err)

	assert.True(t, g.Degraded())
	require.Len(t, g.Connections(), 2)
	assert.Equal(t, Connection{From: "1", To: "2", Cost: 5}, g.Connections()[0])
	assert.Equal(t, Connection{From: "2", To: "3", Cost: 2}, g.Connections()[1])
}

func TestLoader_Load_EmptyConnectionsAreNotChained(t *testing.T) {
	doc := Document{
		Points:      []Point{{ID: "1"}, {ID: "2", Position: r3.Vec{X: 1}}},
		Connections: []Connection{},
	}

	g, err := Load(doc)
	require.NoError(t, err)
	assert.False(t, g.Degraded())
	assert.Empty(t, g.Connections())
}

func TestLoader_Load_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		doc      Document
		contains string
	}{
		{
			name:     "no points",
			doc:      Document{},
			contains: "no points",
		},
		{
			name: "unknown endpoint",
			doc: Document{
				Points:      []Point{{ID: "1"}, {ID: "2"}},
				Connections: []Connection{{From: "1", To: "9", Cost: 1}},
			},
			contains: `connections[0]: unknown point "9"`,
		},
		{
			name: "unknown endpoint in edges",
			doc: Document{
				Points: []Point{{ID: "1"}, {ID: "2"}},
				Edges:  []Connection{{From: "1", To: "2", Cost: 1}, {From: "9", To: "1", Cost: 1}},
			},
			contains: `edges[1]: unknown point "9"`,
		},
		{
			name: "unknown endpoint in links",
			doc: Document{
				Points: []Point{{ID: "1"}, {ID: "2"}},
				Links:  []Connection{{From: "1", To: "7", Cost: 1}},
			},
			contains: `links[0]: unknown point "7"`,
		},
		{
			name: "duplicate id",
			doc: Document{
				Points: []Point{{ID: "1"}, {ID: "1"}},
			},
			contains: `duplicate id "1"`,
		},
		{
			name: "missing id",
			doc: Document{
				Points: []Point{{ID: ""}},
			},
			contains: "Points[0].ID: field is required",
		},
		{
			name: "negative cost",
			doc: Document{
				Points:      []Point{{ID: "1"}, {ID: "2"}},
				Connections: []Connection{{From: "1", To: "2", Cost: -1}},
			},
			contains: "Connections[0].Cost",
		},
		{
			name: "short legacy position",
			doc: Document{
				Nodes: []LegacyNode{{ID: "1", Position: []float64{1, 2}}},
			},
			contains: "Nodes[0].Position",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewLoader(zaptest.NewLogger(t)).Load(tt.doc)
			assert.Nil(t, g)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedGraph)

			var malformedErr *MalformedGraphError
			require.ErrorAs(t, err, &malformedErr)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoader_Load_ReportsEveryUnknownEndpoint(t *testing.T) {
	doc := Document{
		Points: []Point{{ID: "1"}},
		Connections: []Connection{
			{From: "1", To: "x", Cost: 1},
			{From: "y", To: "1", Cost: 1},
		},
	}

	_, err := Load(doc)
	var malformedErr *MalformedGraphError
	require.ErrorAs(t, err, &malformedErr)
	assert.Len(t, malformedErr.Problems, 2)
}

func TestLoader_Load_CountsUnderestimatedEdges(t *testing.T) {
	doc := Document{
		Points: []Point{
			{ID: "1"},
			{ID: "2", Position: r3.Vec{X: 10}},
			{ID: "3", Position: r3.Vec{X: 20}},
		},
		Connections: []Connection{
			{From: "1", To: "2", Cost: 10},
			{From: "2", To: "3", Cost: 1},
		},
	}

	g, err := Load(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, g.UnderestimatedEdges())
}

func TestLoader_LoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "road_graph.yaml")
	content := `
points:
  - id: 10
    position: {x: 0, y: 0, z: 0}
  - id: 11
    position: {x: 0, y: 0, z: 2}
connections:
  - {from: 10, to: 11, cost: 2}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	g, err := NewLoader(zaptest.NewLogger(t)).LoadFile(path)
	require.NoError(t, err)
	assert.True(t, g.Has("10"))
	assert.True(t, g.Has("11"))
	assert.Len(t, g.Connections(), 1)
}

func TestLoader_LoadFile_Missing(t *testing.T) {
	_, err := NewLoader(nil).LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedGraph)
}

func mustParseJSON(t *testing.T, data []byte) Document {
	t.Helper()
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}
