package pathfinding

import (
	"container/heap"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/lib/graph"
	"github.com/dpup/campusnav/server/internal/lib/transform"
)

// Heuristic estimates the remaining cost between two graph-space positions
type Heuristic func(a, b r3.Vec) float64

// Euclidean is the straight-line distance in graph space
func Euclidean(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Zero turns A* into Dijkstra's algorithm
func Zero(_, _ r3.Vec) float64 {
	return 0
}

type neighbor struct {
	node int
	cost float64
}

// Engine answers nearest-point and shortest-path queries over a RoadGraph.
// It is safe for concurrent use once built.
type Engine struct {
	graph     *graph.RoadGraph
	projector transform.Projector
	logger    *zap.Logger
	heuristic Heuristic

	ids       []graph.PointID
	index     map[graph.PointID]int
	adjacency [][]neighbor
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHeuristic overrides the search heuristic. By default Euclidean is used
// unless the graph has edges cheaper than their straight-line length, in
// which case Zero is used.
func WithHeuristic(h Heuristic) Option {
	return func(e *Engine) {
		e.heuristic = h
	}
}

// New builds an engine over g. Connections are treated as undirected. A nil
// projector maps graph space to world space unchanged.
func New(g *graph.RoadGraph, projector transform.Projector, opts ...Option) *Engine {
	if projector == nil {
		projector = transform.NewIdentityPipeline()
	}

	e := &Engine{
		graph:     g,
		projector: projector,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	points := g.Points()
	e.ids = make([]graph.PointID, len(points))
	e.index = make(map[graph.PointID]int, len(points))
	e.adjacency = make([][]neighbor, len(points))
	for i, p := range points {
		e.ids[i] = p.ID
		e.index[p.ID] = i
	}

	for _, c := range g.Connections() {
		from, okFrom := e.index[c.From]
		to, okTo := e.index[c.To]
		if !okFrom || !okTo {
			e.logger.Error("Connection references unknown point, skipping",
				zap.String("from", string(c.From)),
				zap.String("to", string(c.To)))
			continue
		}
		e.adjacency[from] = append(e.adjacency[from], neighbor{node: to, cost: c.Cost})
		e.adjacency[to] = append(e.adjacency[to], neighbor{node: from, cost: c.Cost})
	}

	if e.heuristic == nil {
		e.heuristic = Euclidean
		if g.UnderestimatedEdges() > 0 {
			e.heuristic = Zero
			e.logger.Info("Straight-line heuristic is not admissible for this graph, searching without it",
				zap.Int("underestimatedEdges", g.UnderestimatedEdges()))
		}
	}

	return e
}

// FindNearestPoint returns the graph point whose world-space position is
// closest to position. Ties go to the point listed first. It reports false
// only when the graph has no points.
func (e *Engine) FindNearestPoint(position r3.Vec) (graph.PointID, bool) {
	var (
		nearest graph.PointID
		best    = math.Inf(1)
		found   bool
	)
	for _, p := range e.graph.Points() {
		d := r3.Norm(r3.Sub(e.projector.ToWorld(p.Position), position))
		if d < best {
			best = d
			nearest = p.ID
			found = true
		}
	}
	return nearest, found
}

// FindPath returns the cheapest sequence of point ids from start to end,
// inclusive. It reports false when either id is unknown or end cannot be
// reached.
func (e *Engine) FindPath(start, end graph.PointID) ([]graph.PointID, bool) {
	startIdx, ok := e.index[start]
	if !ok {
		e.logger.Debug("Unknown start point", zap.String("start", string(start)))
		return nil, false
	}
	endIdx, ok := e.index[end]
	if !ok {
		e.logger.Debug("Unknown end point", zap.String("end", string(end)))
		return nil, false
	}

	points := e.graph.Points()
	target := points[endIdx].Position

	gScore := make([]float64, len(points))
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	cameFrom := make([]int, len(points))
	for i := range cameFrom {
		cameFrom[i] = -1
	}

	var seq uint64
	open := &openSet{}
	gScore[startIdx] = 0
	heap.Push(open, openItem{
		node: startIdx,
		g:    0,
		f:    e.heuristic(points[startIdx].Position, target),
		seq:  seq,
	})

	for open.Len() > 0 {
		current := heap.Pop(open).(openItem)
		if current.g > gScore[current.node] {
			continue
		}
		if current.node == endIdx {
			return e.reconstruct(cameFrom, startIdx, endIdx)
		}

		for _, n := range e.adjacency[current.node] {
			tentative := current.g + n.cost
			if tentative >= gScore[n.node] {
				continue
			}
			gScore[n.node] = tentative
			cameFrom[n.node] = current.node
			seq++
			heap.Push(open, openItem{
				node: n.node,
				g:    tentative,
				f:    tentative + e.heuristic(points[n.node].Position, target),
				seq:  seq,
			})
		}
	}

	return nil, false
}

func (e *Engine) reconstruct(cameFrom []int, startIdx, endIdx int) ([]graph.PointID, bool) {
	path := []graph.PointID{e.ids[endIdx]}
	for node := endIdx; node != startIdx; {
		node = cameFrom[node]
		if node < 0 || len(path) > len(e.ids) {
			e.logger.Error("Broken predecessor chain while reconstructing path",
				zap.String("start", string(e.ids[startIdx])),
				zap.String("end", string(e.ids[endIdx])))
			return nil, false
		}
		path = append(path, e.ids[node])
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

// PathCost sums the cheapest connection cost between consecutive ids. It
// returns +Inf when two consecutive ids are not connected.
func (e *Engine) PathCost(path []graph.PointID) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		from, ok := e.index[path[i]]
		if !ok {
			return math.Inf(1)
		}
		to, ok := e.index[path[i+1]]
		if !ok {
			return math.Inf(1)
		}

		step := math.Inf(1)
		for _, n := range e.adjacency[from] {
			if n.node == to && n.cost < step {
				step = n.cost
			}
		}
		total += step
	}
	return total
}

// WorldPath projects path ids into world space. Unknown ids are skipped.
func (e *Engine) WorldPath(path []graph.PointID) []r3.Vec {
	world := make([]r3.Vec, 0, len(path))
	for _, id := range path {
		p, ok := e.graph.Point(id)
		if !ok {
			e.logger.Error("Path references unknown point", zap.String("id", string(id)))
			continue
		}
		world = append(world, e.projector.ToWorld(p.Position))
	}
	return world
}

// FindPathWorld snaps both world positions to their nearest graph points and
// searches between them.
func (e *Engine) FindPathWorld(from, to r3.Vec) ([]graph.PointID, bool) {
	start, ok := e.FindNearestPoint(from)
	if !ok {
		return nil, false
	}
	end, ok := e.FindNearestPoint(to)
	if !ok {
		return nil, false
	}
	return e.FindPath(start, end)
}
