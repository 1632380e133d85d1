package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/clients/buildings"
	"github.com/dpup/campusnav/server/internal/config"
	"github.com/dpup/campusnav/server/internal/lib/graph"
	"github.com/dpup/campusnav/server/internal/lib/pathfinding"
	"github.com/dpup/campusnav/server/internal/services"
)

type staticLookup map[string]r3.Vec

func (l staticLookup) FindBuildingByName(name string) (r3.Vec, bool) {
	p, ok := l[name]
	return p, ok
}

func TestStatusHandler(t *testing.T) {
	g, err := graph.Load(graph.Document{
		Points: []graph.Point{
			{ID: "1", Position: r3.Vec{X: 0}},
			{ID: "2", Position: r3.Vec{X: 100}},
		},
		Connections: []graph.Connection{{From: "1", To: "2", Cost: 100}},
	})
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	lookup := buildings.NewCachedLookup(staticLookup{"Library": {X: 100}}, time.Minute)
	svc := services.NewNavigationService(pathfinding.New(g, nil), lookup, nil,
		config.DefaultNavigationConfig(), services.WithLogger(logger))

	path, err := svc.FindPathBetweenBuildings("Library", "Library")
	require.NoError(t, err)
	assert.Equal(t, []graph.PointID{"2"}, path)

	rec := httptest.NewRecorder()
	statusHandler(svc, lookup, logger)(rec, httptest.NewRequest("GET", "/status", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status struct {
		State         string         `json:"state"`
		BuildingCache map[string]int `json:"buildingCache"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, 1, status.BuildingCache["entries"])
	assert.Equal(t, 1, status.BuildingCache["fresh"])
}
