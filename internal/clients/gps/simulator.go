package gps

import (
	"context"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"go.uber.org/zap"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// Simulation defaults
const (
	DefaultSimulationSpeed = 5.0
	DefaultSimulationTick  = 100 * time.Millisecond
	MinSimulationSpeed     = 1.0
)

// TargetFunc returns where the simulated walker should head next. Returning
// false ends the simulation.
type TargetFunc func() (geo.WorldXZ, bool)

// Simulator walks a virtual position toward a moving target, publishing a
// simulated update after every step.
type Simulator struct {
	*Broadcaster

	mu       sync.Mutex
	position geo.WorldXZ
	speed    float64
	tick     time.Duration
	target   TargetFunc
	logger   *zap.Logger
	running  bool
}

// SimulatorOption configures a Simulator
type SimulatorOption func(*Simulator)

// WithSpeed sets the distance covered per tick
func WithSpeed(speed float64) SimulatorOption {
	return func(s *Simulator) {
		s.speed = math.Max(MinSimulationSpeed, speed)
	}
}

// WithTick sets the interval between steps
func WithTick(tick time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if tick > 0 {
			s.tick = tick
		}
	}
}

// WithSimulatorLogger sets the simulator's logger
func WithSimulatorLogger(logger *zap.Logger) SimulatorOption {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSimulator creates a simulator starting at start and heading for target
func NewSimulator(start geo.WorldXZ, target TargetFunc, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		Broadcaster: NewBroadcaster(),
		position:    start,
		speed:       DefaultSimulationSpeed,
		tick:        DefaultSimulationTick,
		target:      target,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSpeed changes the distance covered per tick. Values below
// MinSimulationSpeed are raised to it.
func (s *Simulator) SetSpeed(speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = math.Max(MinSimulationSpeed, speed)
}

// Speed returns the distance covered per tick
func (s *Simulator) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Position returns the current simulated position
func (s *Simulator) Position() geo.WorldXZ {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// IsRunning reports whether Run is active
func (s *Simulator) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Step moves one tick toward the target and publishes the new position.
// The walker stops on the target rather than overshooting it. It reports
// false, without publishing, once the target function is exhausted.
func (s *Simulator) Step() bool {
	target, ok := s.target()
	if !ok {
		return false
	}

	s.mu.Lock()
	dx := target.X - s.position.X
	dz := target.Z - s.position.Z
	distance := math.Hypot(dx, dz)
	switch {
	case distance <= s.speed:
		s.position = target
	default:
		s.position.X += dx / distance * s.speed
		s.position.Z += dz / distance * s.speed
	}
	position := s.position
	s.mu.Unlock()

	s.Publish(SimulatedUpdate(position.X, position.Z))
	return true
}

// Run steps every tick until the target is exhausted or ctx is cancelled.
// Only one Run may be active at a time; a second call returns immediately.
func (s *Simulator) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	tick := s.tick
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Simulator: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	s.logger.Info("Simulation started",
		zap.Float64("x", s.Position().X),
		zap.Float64("z", s.Position().Z),
		zap.Float64("speed", s.Speed()))

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulation stopping due to context cancellation")
			return
		case <-ticker.C:
			if !s.Step() {
				s.logger.Info("Simulation finished")
				return
			}
		}
	}
}
