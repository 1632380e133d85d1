package render

import (
	"errors"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Route is a calculated route ready for display
type Route struct {
	SessionID   string
	Destination string
	Waypoints   []r3.Vec
}

// Sink displays routes. Implementations must tolerate ClearRoute without a
// preceding VisualizeRoute.
type Sink interface {
	VisualizeRoute(route Route) error
	ClearRoute() error
}

// Multi forwards every call to each sink in order, joining their errors
type Multi []Sink

func (m Multi) VisualizeRoute(route Route) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.VisualizeRoute(route))
	}
	return errors.Join(errs...)
}

func (m Multi) ClearRoute() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ClearRoute())
	}
	return errors.Join(errs...)
}

// LogSink writes routes to a structured logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs to logger
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) VisualizeRoute(route Route) error {
	if len(route.Waypoints) < 2 {
		s.logger.Warn("Route too short to visualize", zap.Int("waypoints", len(route.Waypoints)))
		return nil
	}

	first, last := route.Waypoints[0], route.Waypoints[len(route.Waypoints)-1]
	s.logger.Info("Route",
		zap.String("session", route.SessionID),
		zap.String("destination", route.Destination),
		zap.Int("waypoints", len(route.Waypoints)),
		zap.Float64s("start", []float64{first.X, first.Y, first.Z}),
		zap.Float64s("end", []float64{last.X, last.Y, last.Z}))
	return nil
}

func (s *LogSink) ClearRoute() error {
	s.logger.Info("Route cleared")
	return nil
}
