package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/lib/graph"
)

func TestConnectedComponents(t *testing.T) {
	g, err := graph.Load(graph.Document{
		Points: []graph.Point{
			{ID: "a", Position: r3.Vec{X: 0}},
			{ID: "b", Position: r3.Vec{X: 1}},
			{ID: "c", Position: r3.Vec{X: 2}},
			{ID: "d", Position: r3.Vec{X: 10}},
			{ID: "e", Position: r3.Vec{X: 11}},
			{ID: "f", Position: r3.Vec{X: 50}},
		},
		Connections: []graph.Connection{
			{From: "a", To: "b", Cost: 1},
			{From: "b", To: "c", Cost: 1},
			{From: "d", To: "e", Cost: 1},
		},
	})
	require.NoError(t, err)

	components := connectedComponents(g)
	require.Len(t, components, 3)
	assert.ElementsMatch(t, []graph.PointID{"a", "b", "c"}, components[0])
	assert.ElementsMatch(t, []graph.PointID{"d", "e"}, components[1])
	assert.Equal(t, []graph.PointID{"f"}, components[2])
}
