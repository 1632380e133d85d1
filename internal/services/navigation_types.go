package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/lib/graph"
)

// Navigation failures. They are recoverable: the operation reports false and
// the reason is available from LastError.
var (
	ErrDestinationNotFound = errors.New("destination not found")
	ErrPositionUnavailable = errors.New("no starting position available")
	ErrNoPathFound         = errors.New("no valid path found")
	ErrNoRoute             = errors.New("no route available")
)

// State is the navigation session state
type State int

const (
	StateIdle State = iota
	StateRouteCalculated
	StateNavigating
	StateArrived
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRouteCalculated:
		return "route_calculated"
	case StateNavigating:
		return "navigating"
	case StateArrived:
		return "arrived"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UpdateKind describes what a navigation update did
type UpdateKind int

const (
	// UpdateDropped means another update was still in flight
	UpdateDropped UpdateKind = iota
	// UpdateInactive means navigation is not running
	UpdateInactive
	// UpdateNoPosition means no position has been reported yet
	UpdateNoPosition
	UpdateProgress
	UpdateWaypointReached
	UpdateRecalculated
	UpdateArrived
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateDropped:
		return "dropped"
	case UpdateInactive:
		return "inactive"
	case UpdateNoPosition:
		return "no_position"
	case UpdateProgress:
		return "progress"
	case UpdateWaypointReached:
		return "waypoint_reached"
	case UpdateRecalculated:
		return "recalculated"
	case UpdateArrived:
		return "arrived"
	default:
		return fmt.Sprintf("update(%d)", int(k))
	}
}

// Progress is the guidance shown to the walker after an update
type Progress struct {
	WaypointIndex   int
	WaypointCount   int
	Instruction     string
	Distance        float64
	ETA             time.Duration
	ETAText         string
	Direction       r3.Vec
	OffPathDistance float64
	Position        r3.Vec
}

// UpdateResult is the outcome of one UpdateNavigation call
type UpdateResult struct {
	Kind     UpdateKind
	Progress Progress
}

// Session is a snapshot of the current route
type Session struct {
	ID            string
	Destination   string
	Target        r3.Vec
	Path          []graph.PointID
	Waypoints     []r3.Vec
	WaypointIndex int
	State         State
	CalculatedAt  time.Time
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Path = append([]graph.PointID(nil), s.Path...)
	c.Waypoints = append([]r3.Vec(nil), s.Waypoints...)
	return &c
}

// Listener receives navigation events. Calls happen outside the service's
// lock, so a listener may query the service.
type Listener interface {
	RouteCalculated(session Session)
	NavigationUpdate(result UpdateResult)
}

// NopListener ignores all events
type NopListener struct{}

func (NopListener) RouteCalculated(Session)       {}
func (NopListener) NavigationUpdate(UpdateResult) {}

// ArrivedMessage is the instruction reported on arrival
const ArrivedMessage = "You have reached your destination"

// Instruction returns the guidance text for the waypoint at index on a route
// of count waypoints.
func Instruction(index, count int) string {
	switch {
	case index < 0 || index >= count:
		return "Follow the route"
	case index == count-1:
		return "Arriving at your destination"
	case index == 0:
		return "Start following the path"
	default:
		return fmt.Sprintf("Continue to waypoint %d of %d", index+1, count)
	}
}

// EstimateArrival returns the walking time for distance at speed, rounded to
// the second.
func EstimateArrival(distance, speed float64) time.Duration {
	if speed <= 0 {
		return 0
	}
	return time.Duration(math.Round(distance/speed)) * time.Second
}

// FormatETA renders eta as "N seconds" below a minute and "M min S sec" above
func FormatETA(eta time.Duration) string {
	seconds := int(eta.Round(time.Second) / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	return fmt.Sprintf("%d min %d sec", seconds/60, seconds%60)
}
