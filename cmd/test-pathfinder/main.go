package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/graph"
	"github.com/dpup/campusnav/server/internal/lib/pathfinding"
	"github.com/dpup/campusnav/server/internal/lib/polyline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "stats":
		handleStats()
	case "path":
		handlePath()
	case "nearest":
		handleNearest()
	case "project":
		handleProject()
	case "unproject":
		handleUnproject()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func loadGraph(path string, verbose bool) *graph.RoadGraph {
	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}
	g, err := graph.NewLoader(logger).LoadFile(path)
	if err != nil {
		log.Fatalf("Error loading graph %s: %v", path, err)
	}
	return g
}

func handleStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	graphFile := fs.String("graph", "", "Path to road graph (JSON or YAML)")
	verbose := fs.Bool("verbose", false, "Log normalization details")

	fs.Parse(os.Args[2:])

	if *graphFile == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-pathfinder stats --graph road_graph.json")
		os.Exit(1)
	}

	g := loadGraph(*graphFile, *verbose)
	components := connectedComponents(g)

	fmt.Printf("Points:               %d\n", g.Len())
	fmt.Printf("Connections:          %d\n", len(g.Connections()))
	fmt.Printf("Degraded:             %t\n", g.Degraded())
	fmt.Printf("Underestimated edges: %d\n", g.UnderestimatedEdges())
	fmt.Printf("Components:           %d\n", len(components))
	for i, c := range components {
		if i == 5 {
			fmt.Printf("  ... %d more\n", len(components)-5)
			break
		}
		fmt.Printf("  #%d: %d points (e.g. %s)\n", i+1, len(c), c[0])
	}
}

func handlePath() {
	fs := flag.NewFlagSet("path", flag.ExitOnError)
	graphFile := fs.String("graph", "", "Path to road graph (JSON or YAML)")
	from := fs.String("from", "", "Start point id")
	to := fs.String("to", "", "End point id")
	threshold := fs.Float64("simplify", 0, "Simplify the world path with this threshold")
	dijkstra := fs.Bool("dijkstra", false, "Search without the straight-line heuristic")
	asJSON := fs.Bool("json", false, "Print the result as JSON")

	fs.Parse(os.Args[2:])

	if *graphFile == "" || *from == "" || *to == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-pathfinder path --graph road_graph.json --from 1 --to 42")
		fmt.Println("  test-pathfinder path --graph road_graph.json --from 1 --to 42 --simplify 5 --json")
		os.Exit(1)
	}

	var opts []pathfinding.Option
	if *dijkstra {
		opts = append(opts, pathfinding.WithHeuristic(pathfinding.Zero))
	}
	engine := pathfinding.New(loadGraph(*graphFile, false), nil, opts...)

	path, ok := engine.FindPath(graph.PointID(*from), graph.PointID(*to))
	if !ok {
		fmt.Printf("No path from %s to %s\n", *from, *to)
		os.Exit(2)
	}

	waypoints := engine.WorldPath(path)
	if *threshold > 0 {
		waypoints = polyline.Simplify(waypoints, *threshold)
	}

	result := struct {
		Path      []graph.PointID `json:"path"`
		Cost      float64         `json:"cost"`
		Length    float64         `json:"length"`
		Waypoints []r3.Vec        `json:"waypoints"`
	}{
		Path:      path,
		Cost:      engine.PathCost(path),
		Length:    polyline.Length(waypoints),
		Waypoints: waypoints,
	}

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Error encoding result: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("Path:      %v\n", result.Path)
	fmt.Printf("Cost:      %.2f\n", result.Cost)
	fmt.Printf("Length:    %.2f\n", result.Length)
	fmt.Printf("Waypoints: %d\n", len(result.Waypoints))
	for i, w := range result.Waypoints {
		fmt.Printf("  %2d: (%.2f, %.2f, %.2f)\n", i, w.X, w.Y, w.Z)
	}
}

func handleNearest() {
	fs := flag.NewFlagSet("nearest", flag.ExitOnError)
	graphFile := fs.String("graph", "", "Path to road graph (JSON or YAML)")
	x := fs.Float64("x", 0, "World X")
	z := fs.Float64("z", 0, "World Z")

	fs.Parse(os.Args[2:])

	if *graphFile == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-pathfinder nearest --graph road_graph.json --x 114.95 --z -49.85")
		os.Exit(1)
	}

	g := loadGraph(*graphFile, false)
	engine := pathfinding.New(g, nil)
	position := r3.Vec{X: *x, Z: *z}

	id, ok := engine.FindNearestPoint(position)
	if !ok {
		fmt.Println("Graph has no points")
		os.Exit(2)
	}
	p, _ := g.Point(id)
	fmt.Printf("Nearest point: %s at (%.2f, %.2f, %.2f), %.2f away\n",
		id, p.Position.X, p.Position.Y, p.Position.Z, r3.Norm(r3.Sub(p.Position, position)))
}

func handleProject() {
	fs := flag.NewFlagSet("project", flag.ExitOnError)
	lat := fs.Float64("lat", geo.ReferenceLatitude, "Latitude")
	lng := fs.Float64("lng", geo.ReferenceLongitude, "Longitude")
	factor := fs.Float64("factor", geo.DefaultCalibrationFactor, "Calibration factor")

	fs.Parse(os.Args[2:])

	anchor := geo.DefaultAnchor()
	anchor.CalibrationFactor = *factor
	projector := geo.NewProjector(anchor)

	point, err := geo.NewPoint(*lat, *lng)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	w := projector.GeoToWorld(point.Latitude, point.Longitude)
	distance, _ := geo.Distance(anchor.Reference, point)

	fmt.Printf("World: x=%.3f z=%.3f\n", w.X, w.Z)
	fmt.Printf("Distance from reference: %.1f m\n", distance)
}

func handleUnproject() {
	fs := flag.NewFlagSet("unproject", flag.ExitOnError)
	x := fs.Float64("x", geo.ReferenceWorldX, "World X")
	z := fs.Float64("z", geo.ReferenceWorldZ, "World Z")
	factor := fs.Float64("factor", geo.DefaultCalibrationFactor, "Calibration factor")

	fs.Parse(os.Args[2:])

	anchor := geo.DefaultAnchor()
	anchor.CalibrationFactor = *factor
	p := geo.NewProjector(anchor).WorldToGeo(*x, *z)

	fmt.Printf("GPS: lat=%.7f lng=%.7f\n", p.Latitude, p.Longitude)
}

// connectedComponents groups point ids by connectivity, largest group first
func connectedComponents(g *graph.RoadGraph) [][]graph.PointID {
	parent := make(map[graph.PointID]graph.PointID, g.Len())
	var find func(graph.PointID) graph.PointID
	find = func(id graph.PointID) graph.PointID {
		for parent[id] != id {
			parent[id] = parent[parent[id]]
			id = parent[id]
		}
		return id
	}

	for _, p := range g.Points() {
		parent[p.ID] = p.ID
	}
	for _, c := range g.Connections() {
		if _, ok := parent[c.From]; !ok {
			continue
		}
		if _, ok := parent[c.To]; !ok {
			continue
		}
		parent[find(c.From)] = find(c.To)
	}

	groups := map[graph.PointID][]graph.PointID{}
	for _, p := range g.Points() {
		root := find(p.ID)
		groups[root] = append(groups[root], p.ID)
	}

	components := make([][]graph.PointID, 0, len(groups))
	for _, members := range groups {
		components = append(components, members)
	}
	sort.Slice(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return components[i][0] < components[j][0]
	})
	return components
}

func printUsage() {
	fmt.Println("test-pathfinder - road graph diagnostics")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  test-pathfinder stats --graph <file>")
	fmt.Println("  test-pathfinder path --graph <file> --from <id> --to <id> [--simplify N] [--dijkstra] [--json]")
	fmt.Println("  test-pathfinder nearest --graph <file> --x <x> --z <z>")
	fmt.Println("  test-pathfinder project --lat <lat> --lng <lng>")
	fmt.Println("  test-pathfinder unproject --x <x> --z <z>")
}
