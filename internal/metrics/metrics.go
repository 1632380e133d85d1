package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route calculation outcomes
const (
	ResultOK                  = "ok"
	ResultNoPath              = "no_path"
	ResultPositionUnavailable = "position_unavailable"
	ResultDestinationNotFound = "destination_not_found"
)

// Registry holds the navigation metrics. A nil *Registry records nothing.
type Registry struct {
	RoutesTotal         *prometheus.CounterVec
	RecalculationsTotal *prometheus.CounterVec
	ArrivalsTotal       prometheus.Counter
	UpdatesDroppedTotal prometheus.Counter
	WaypointsReached    prometheus.Counter
	PathSearchDuration  prometheus.Histogram
	NavigationState     *prometheus.GaugeVec
	OffPathDistance     prometheus.Gauge
	RemainingWaypoints  prometheus.Gauge

	registry *prometheus.Registry
}

// States reported by the navigation_state gauge
var States = []string{"idle", "route_calculated", "navigating", "arrived"}

// NewRegistry creates a registry with all navigation metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}
	factory := promauto.With(reg)

	r.RoutesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusnav_routes_total",
			Help: "Route calculations by outcome",
		},
		[]string{"result"},
	)

	r.RecalculationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusnav_recalculations_total",
			Help: "Off-path route recalculations by outcome",
		},
		[]string{"result"},
	)

	r.ArrivalsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "campusnav_arrivals_total",
			Help: "Navigation sessions that reached their destination",
		},
	)

	r.UpdatesDroppedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "campusnav_updates_dropped_total",
			Help: "Navigation updates dropped because another update was in progress",
		},
	)

	r.WaypointsReached = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "campusnav_waypoints_reached_total",
			Help: "Waypoints reached across all sessions",
		},
	)

	r.PathSearchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campusnav_path_search_duration_seconds",
			Help:    "Time spent finding nearest points and searching the road graph",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	r.NavigationState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campusnav_navigation_state",
			Help: "Current navigation state (1 for the active state)",
		},
		[]string{"state"},
	)

	r.OffPathDistance = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "campusnav_off_path_distance",
			Help: "Ground distance from the last position to the route, in world units",
		},
	)

	r.RemainingWaypoints = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "campusnav_remaining_waypoints",
			Help: "Waypoints left in the active route",
		},
	)

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// RecordRoute records a route calculation and the time spent searching
func (r *Registry) RecordRoute(result string, duration time.Duration) {
	if r == nil {
		return
	}
	r.RoutesTotal.WithLabelValues(result).Inc()
	if result == ResultOK {
		r.PathSearchDuration.Observe(duration.Seconds())
	}
}

// RecordRecalculation records an off-path recalculation
func (r *Registry) RecordRecalculation(result string) {
	if r == nil {
		return
	}
	r.RecalculationsTotal.WithLabelValues(result).Inc()
}

// RecordWaypointReached records advancing past a waypoint
func (r *Registry) RecordWaypointReached(remaining int) {
	if r == nil {
		return
	}
	r.WaypointsReached.Inc()
	r.RemainingWaypoints.Set(float64(remaining))
}

// RecordArrival records a completed session
func (r *Registry) RecordArrival() {
	if r == nil {
		return
	}
	r.ArrivalsTotal.Inc()
	r.RemainingWaypoints.Set(0)
}

// RecordDroppedUpdate records an update skipped by the re-entrancy guard
func (r *Registry) RecordDroppedUpdate() {
	if r == nil {
		return
	}
	r.UpdatesDroppedTotal.Inc()
}

// RecordOffPathDistance records the latest distance from the route
func (r *Registry) RecordOffPathDistance(distance float64) {
	if r == nil {
		return
	}
	r.OffPathDistance.Set(distance)
}

// SetState sets the current navigation state
func (r *Registry) SetState(state string) {
	if r == nil {
		return
	}
	for _, s := range States {
		r.NavigationState.WithLabelValues(s).Set(0)
	}
	r.NavigationState.WithLabelValues(state).Set(1)
}
