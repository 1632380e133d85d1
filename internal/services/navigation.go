package services

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/clients/buildings"
	"github.com/dpup/campusnav/server/internal/clients/gps"
	"github.com/dpup/campusnav/server/internal/config"
	"github.com/dpup/campusnav/server/internal/lib/geo"
	"github.com/dpup/campusnav/server/internal/lib/graph"
	"github.com/dpup/campusnav/server/internal/lib/polyline"
	"github.com/dpup/campusnav/server/internal/metrics"
	"github.com/dpup/campusnav/server/internal/render"
)

// Pathfinder finds routes through the road graph. *pathfinding.Engine
// implements it.
type Pathfinder interface {
	FindNearestPoint(position r3.Vec) (graph.PointID, bool)
	FindPath(start, end graph.PointID) ([]graph.PointID, bool)
	FindPathWorld(from, to r3.Vec) ([]graph.PointID, bool)
	WorldPath(path []graph.PointID) []r3.Vec
}

// NavigationService guides a walker along a route to a named building. It
// owns a single session that moves through Idle, RouteCalculated,
// Navigating and Arrived.
//
// Updates arrive from a periodic ticker and from position sources. Only one
// update runs at a time; an update arriving while another is in flight is
// dropped.
type NavigationService struct {
	pathfinder Pathfinder
	buildings  buildings.Lookup
	projector  *geo.Projector
	config     config.NavigationConfig

	logger   *zap.Logger
	metrics  *metrics.Registry
	sink     render.Sink
	listener Listener
	now      func() time.Time
	newID    func() string

	updating atomic.Bool

	mu         sync.Mutex
	state      State
	session    *Session
	position   *gps.Update
	lastRecalc time.Time
	lastErr    error
	cancel     context.CancelFunc
	run        uint64
	simulator  *gps.Simulator
}

// NavigationOption configures a NavigationService
type NavigationOption func(*NavigationService)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) NavigationOption {
	return func(s *NavigationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records navigation metrics into registry
func WithMetrics(registry *metrics.Registry) NavigationOption {
	return func(s *NavigationService) {
		s.metrics = registry
	}
}

// WithSink displays calculated routes
func WithSink(sink render.Sink) NavigationOption {
	return func(s *NavigationService) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithListener receives route and progress events
func WithListener(listener Listener) NavigationOption {
	return func(s *NavigationService) {
		if listener != nil {
			s.listener = listener
		}
	}
}

// WithClock replaces time.Now, used for the recalculation cooldown
func WithClock(now func() time.Time) NavigationOption {
	return func(s *NavigationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionIDs replaces the session id generator
func WithSessionIDs(newID func() string) NavigationOption {
	return func(s *NavigationService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewNavigationService creates a navigation service. A nil projector uses the
// deployed campus anchor.
func NewNavigationService(pathfinder Pathfinder, lookup buildings.Lookup, projector *geo.Projector, cfg config.NavigationConfig, opts ...NavigationOption) *NavigationService {
	if projector == nil {
		projector = geo.NewProjector(geo.DefaultAnchor())
	}
	cfg.SimulationSpeed = math.Max(gps.MinSimulationSpeed, cfg.SimulationSpeed)

	s := &NavigationService{
		pathfinder: pathfinder,
		buildings:  lookup,
		projector:  projector,
		config:     cfg,
		logger:     zap.NewNop(),
		sink:       render.Multi(nil),
		listener:   NopListener{},
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetState(StateIdle.String())
	return s
}

// NavigateTo calculates a route from the current position to the named
// building, replacing any existing session. On failure the reason is
// available from LastError and an existing session is kept only if the
// destination or position could not be resolved.
func (s *NavigationService) NavigateTo(destination string) bool {
	started := s.now()

	target, ok := s.buildings.FindBuildingByName(destination)
	if !ok {
		return s.fail(fmt.Errorf("%w: %q", ErrDestinationNotFound, destination), metrics.ResultDestinationNotFound, started)
	}

	s.mu.Lock()
	if s.position == nil && !s.config.UseRealGPS {
		origin := gps.SimulatedUpdate(0, 0)
		s.position = &origin
	}
	from, ok := s.positionLocked()
	s.mu.Unlock()
	if !ok {
		return s.fail(ErrPositionUnavailable, metrics.ResultPositionUnavailable, started)
	}

	s.Clear()

	path, waypoints, err := s.calculateRoute(from, target)
	if err != nil {
		return s.fail(err, metrics.ResultNoPath, started)
	}

	s.mu.Lock()
	s.session = &Session{
		ID:           s.newID(),
		Destination:  destination,
		Target:       target,
		Path:         path,
		Waypoints:    waypoints,
		CalculatedAt: s.now(),
	}
	s.setStateLocked(StateRouteCalculated)
	s.lastErr = nil
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.RecordRoute(metrics.ResultOK, s.now().Sub(started))
	s.logger.Info("Route calculated",
		zap.String("session", snapshot.ID),
		zap.String("destination", destination),
		zap.Int("points", len(path)),
		zap.Int("waypoints", len(waypoints)))

	s.render(snapshot)
	s.listener.RouteCalculated(snapshot)
	return true
}

// Start begins navigating the calculated route. It runs one update
// immediately and then one per update interval until the route is stopped,
// cleared or completed. Cancelling ctx returns the service to idle. In
// simulation mode a simulated walker follows the route from its first
// waypoint.
func (s *NavigationService) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.session == nil || len(s.session.Waypoints) == 0 {
		s.lastErr = ErrNoRoute
		s.mu.Unlock()
		s.logger.Warn("Cannot start navigation", zap.Error(ErrNoRoute))
		return false
	}

	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.run++
	run := s.run
	s.session.WaypointIndex = 0
	s.lastErr = nil
	s.setStateLocked(StateNavigating)

	var sim *gps.Simulator
	if !s.config.UseRealGPS {
		first := s.session.Waypoints[0]
		start := gps.SimulatedUpdate(first.X, first.Z)
		s.position = &start
		sim = gps.NewSimulator(*start.World, s.ActiveWaypoint,
			gps.WithSpeed(s.config.SimulationSpeed),
			gps.WithTick(s.config.SimulationTick),
			gps.WithSimulatorLogger(s.logger))
	}
	s.simulator = sim
	interval := s.config.UpdateInterval
	sessionID := s.session.ID
	s.mu.Unlock()

	s.logger.Info("Navigation started",
		zap.String("session", sessionID),
		zap.Bool("simulated", sim != nil))

	if sim != nil {
		unsubscribe := sim.Subscribe(s.UpdatePosition)
		go func() {
			defer unsubscribe()
			sim.Run(runCtx)
		}()
	}

	s.UpdateNavigation()
	go s.updateLoop(runCtx, run, interval)
	return true
}

// Stop returns the service to idle and keeps the route so it can be started
// again. It reports whether navigation was running.
func (s *NavigationService) Stop() bool {
	s.mu.Lock()
	wasActive := s.state == StateNavigating
	if s.state != StateIdle {
		s.stopLocked(StateIdle)
	}
	s.mu.Unlock()

	if wasActive {
		s.logger.Info("Navigation stopped")
	}
	return wasActive
}

// Clear stops navigation and discards the route
func (s *NavigationService) Clear() {
	s.mu.Lock()
	hadRoute := s.session != nil
	s.stopLocked(StateIdle)
	s.session = nil
	s.lastRecalc = time.Time{}
	s.mu.Unlock()

	if !hadRoute {
		return
	}
	if err := s.sink.ClearRoute(); err != nil {
		s.logger.Warn("Failed to clear route display", zap.Error(err))
	}
	s.logger.Info("Navigation cleared")
}

// UpdateNavigation checks the current position against the route: it
// advances waypoints, detects arrival and recalculates the route when the
// walker strays too far from it.
func (s *NavigationService) UpdateNavigation() UpdateResult {
	if !s.updating.CompareAndSwap(false, true) {
		s.metrics.RecordDroppedUpdate()
		s.logger.Debug("Navigation update already in progress, dropping")
		return UpdateResult{Kind: UpdateDropped}
	}
	defer s.updating.Store(false)

	s.mu.Lock()
	result, rerouted := s.updateLocked()
	s.mu.Unlock()

	switch result.Kind {
	case UpdateInactive, UpdateNoPosition:
		return result
	case UpdateArrived:
		s.logger.Info("Destination reached")
	case UpdateWaypointReached:
		s.logger.Info(result.Progress.Instruction,
			zap.Int("waypoint", result.Progress.WaypointIndex+1),
			zap.Int("waypoints", result.Progress.WaypointCount))
	}

	if rerouted != nil {
		s.render(*rerouted)
		s.listener.RouteCalculated(*rerouted)
	}
	s.listener.NavigationUpdate(result)
	return result
}

// UpdatePosition records the walker's latest position and, while
// navigating, runs an update. It can be subscribed to a gps.Source.
func (s *NavigationService) UpdatePosition(update gps.Update) {
	s.mu.Lock()
	s.position = &update
	active := s.state == StateNavigating
	s.mu.Unlock()

	if active {
		s.UpdateNavigation()
	}
}

// Attach subscribes the service to a position source
func (s *NavigationService) Attach(source gps.Source) (detach func()) {
	return source.Subscribe(s.UpdatePosition)
}

// ActiveWaypoint returns the waypoint the walker is heading to. It reports
// false when not navigating.
func (s *NavigationService) ActiveWaypoint() (geo.WorldXZ, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNavigating || s.session == nil || s.session.WaypointIndex >= len(s.session.Waypoints) {
		return geo.WorldXZ{}, false
	}
	w := s.session.Waypoints[s.session.WaypointIndex]
	return geo.WorldXZ{X: w.X, Z: w.Z}, true
}

// IsActive reports whether navigation is running
func (s *NavigationService) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateNavigating
}

// State returns the session state
func (s *NavigationService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns a copy of the current session
func (s *NavigationService) Session() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return s.snapshotLocked(), true
}

// LastError returns why the last NavigateTo or Start failed, or nil
func (s *NavigationService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetUseRealGPS switches between GPS fixes and the simulated walker. It takes
// effect on the next NavigateTo or Start.
func (s *NavigationService) SetUseRealGPS(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.UseRealGPS = enabled
}

// SetSimulationSpeed sets the simulated walking distance per tick. Speeds
// below the minimum are raised to it.
func (s *NavigationService) SetSimulationSpeed(speed float64) {
	s.mu.Lock()
	s.config.SimulationSpeed = math.Max(gps.MinSimulationSpeed, speed)
	sim := s.simulator
	speed = s.config.SimulationSpeed
	s.mu.Unlock()

	if sim != nil {
		sim.SetSpeed(speed)
	}
}

// FindPath returns the graph path between two points
func (s *NavigationService) FindPath(start, end graph.PointID) ([]graph.PointID, bool) {
	return s.pathfinder.FindPath(start, end)
}

// FindPathBetweenBuildings returns the graph path between two named
// buildings without touching the navigation session
func (s *NavigationService) FindPathBetweenBuildings(from, to string) ([]graph.PointID, error) {
	start, ok := s.buildings.FindBuildingByName(from)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDestinationNotFound, from)
	}
	end, ok := s.buildings.FindBuildingByName(to)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDestinationNotFound, to)
	}

	path, ok := s.pathfinder.FindPathWorld(start, end)
	if !ok {
		return nil, fmt.Errorf("%w: from %q to %q", ErrNoPathFound, from, to)
	}
	return path, nil
}

// FindNearestPointWorld returns the graph point nearest to a world position
func (s *NavigationService) FindNearestPointWorld(position r3.Vec) (graph.PointID, bool) {
	return s.pathfinder.FindNearestPoint(position)
}

func (s *NavigationService) updateLoop(ctx context.Context, run uint64, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Navigation updates: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Navigation updates stopping due to context cancellation")
			s.endRun(run)
			return
		case <-ticker.C:
			s.UpdateNavigation()
		}
	}
}

// endRun moves a run that is still navigating to idle once its context ends
func (s *NavigationService) endRun(run uint64) {
	s.mu.Lock()
	ended := s.run == run && s.state == StateNavigating
	if ended {
		s.stopLocked(StateIdle)
	}
	s.mu.Unlock()

	if ended {
		s.logger.Info("Navigation stopped, context done")
	}
}

func (s *NavigationService) updateLocked() (UpdateResult, *Session) {
	if s.state != StateNavigating || s.session == nil || len(s.session.Waypoints) == 0 {
		return UpdateResult{Kind: UpdateInactive}, nil
	}

	position, ok := s.positionLocked()
	if !ok {
		s.logger.Warn("No position available for navigation update")
		return UpdateResult{Kind: UpdateNoPosition}, nil
	}

	session := s.session
	count := len(session.Waypoints)
	if session.WaypointIndex >= count {
		s.logger.Error("Invalid waypoint index",
			zap.Int("index", session.WaypointIndex),
			zap.Int("waypoints", count))
		return UpdateResult{Kind: UpdateInactive}, nil
	}

	if polyline.GroundDistance(position, session.Waypoints[count-1]) <= s.config.ArrivalDistance {
		return s.arriveLocked(position), nil
	}

	kind := UpdateProgress
	if polyline.GroundDistance(position, session.Waypoints[session.WaypointIndex]) <= s.config.ArrivalDistance {
		session.WaypointIndex++
		kind = UpdateWaypointReached
		s.metrics.RecordWaypointReached(count - session.WaypointIndex)
	}

	var rerouted *Session
	offPath := polyline.GroundDistanceToPolyline(position, session.Waypoints)
	if offPath > s.config.RecalculationDistance && s.recalculateLocked(position, offPath) {
		kind = UpdateRecalculated
		offPath = polyline.GroundDistanceToPolyline(position, s.session.Waypoints)
		snapshot := s.snapshotLocked()
		rerouted = &snapshot
	}
	s.metrics.RecordOffPathDistance(offPath)

	return UpdateResult{Kind: kind, Progress: s.progressLocked(position, offPath)}, rerouted
}

func (s *NavigationService) recalculateLocked(position r3.Vec, offPath float64) bool {
	now := s.now()
	if !s.lastRecalc.IsZero() && now.Sub(s.lastRecalc) < s.config.RecalculationCooldown {
		s.logger.Debug("Off path, waiting for recalculation cooldown",
			zap.Float64("offPath", offPath),
			zap.Duration("sinceLast", now.Sub(s.lastRecalc)))
		return false
	}
	s.lastRecalc = now

	s.logger.Info("Too far from path, recalculating",
		zap.Float64("offPath", offPath),
		zap.Float64("threshold", s.config.RecalculationDistance))

	path, waypoints, err := s.calculateRoute(position, s.session.Target)
	if err != nil {
		s.logger.Warn("Route recalculation failed, keeping current route", zap.Error(err))
		s.metrics.RecordRecalculation(metrics.ResultNoPath)
		return false
	}

	s.session.Path = path
	s.session.Waypoints = waypoints
	s.session.WaypointIndex = 0
	s.session.CalculatedAt = now
	s.metrics.RecordRecalculation(metrics.ResultOK)
	return true
}

func (s *NavigationService) arriveLocked(position r3.Vec) UpdateResult {
	count := len(s.session.Waypoints)
	s.session.WaypointIndex = count
	s.stopLocked(StateArrived)
	s.metrics.RecordArrival()
	return UpdateResult{
		Kind: UpdateArrived,
		Progress: Progress{
			WaypointIndex: count,
			WaypointCount: count,
			Instruction:   ArrivedMessage,
			ETAText:       FormatETA(0),
			Position:      position,
		},
	}
}

func (s *NavigationService) progressLocked(position r3.Vec, offPath float64) Progress {
	session := s.session
	target := session.Waypoints[session.WaypointIndex]
	distance := polyline.GroundDistance(position, target)
	eta := EstimateArrival(distance, s.config.WalkingSpeed)

	direction := r3.Sub(polyline.Ground(target), polyline.Ground(position))
	if n := r3.Norm(direction); n > 0 {
		direction = r3.Scale(1/n, direction)
	}

	return Progress{
		WaypointIndex:   session.WaypointIndex,
		WaypointCount:   len(session.Waypoints),
		Instruction:     Instruction(session.WaypointIndex, len(session.Waypoints)),
		Distance:        distance,
		ETA:             eta,
		ETAText:         FormatETA(eta),
		Direction:       direction,
		OffPathDistance: offPath,
		Position:        position,
	}
}

// calculateRoute snaps both positions to the graph, searches it and returns
// the path with its world-space waypoints
func (s *NavigationService) calculateRoute(from, to r3.Vec) ([]graph.PointID, []r3.Vec, error) {
	start, okStart := s.pathfinder.FindNearestPoint(from)
	end, okEnd := s.pathfinder.FindNearestPoint(to)
	if !okStart || !okEnd {
		return nil, nil, fmt.Errorf("%w: could not find valid path points", ErrNoPathFound)
	}

	path, ok := s.pathfinder.FindPath(start, end)
	if !ok || len(path) < 2 {
		return nil, nil, fmt.Errorf("%w: from %s to %s", ErrNoPathFound, start, end)
	}

	waypoints := s.pathfinder.WorldPath(path)
	if s.config.SmoothPath {
		before := len(waypoints)
		waypoints = polyline.Simplify(waypoints, s.config.SimplifyThreshold)
		s.logger.Debug("Path simplified", zap.Int("before", before), zap.Int("after", len(waypoints)))
	}
	return path, waypoints, nil
}

// positionLocked resolves the last known position in world space
func (s *NavigationService) positionLocked() (r3.Vec, bool) {
	switch {
	case s.position == nil:
		return r3.Vec{}, false
	case s.position.Fix != nil:
		return s.projector.GeoToWorld(s.position.Fix.Latitude, s.position.Fix.Longitude).ToVec(), true
	case s.position.World != nil:
		return s.position.World.ToVec(), true
	default:
		return r3.Vec{}, false
	}
}

func (s *NavigationService) stopLocked(next State) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.simulator = nil
	s.setStateLocked(next)
}

func (s *NavigationService) setStateLocked(state State) {
	s.state = state
	s.metrics.SetState(state.String())
}

func (s *NavigationService) snapshotLocked() Session {
	snapshot := *s.session.clone()
	snapshot.State = s.state
	return snapshot
}

func (s *NavigationService) fail(err error, result string, started time.Time) bool {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.metrics.RecordRoute(result, s.now().Sub(started))
	s.logger.Warn("Navigation failed", zap.Error(err))
	return false
}

func (s *NavigationService) render(session Session) {
	route := render.Route{
		SessionID:   session.ID,
		Destination: session.Destination,
		Waypoints:   session.Waypoints,
	}
	if err := s.sink.VisualizeRoute(route); err != nil {
		s.logger.Warn("Failed to display route", zap.Error(err))
	}
}
