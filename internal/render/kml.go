package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/twpayne/go-kml"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// RouteKML converts a route into a KML document, projecting each waypoint
// back to GPS coordinates. The document holds the route line plus start and
// destination placemarks.
func RouteKML(route Route, projector *geo.Projector) *kml.CompoundElement {
	coordinates := make([]kml.Coordinate, len(route.Waypoints))
	for i, w := range route.Waypoints {
		p := projector.WorldToGeo(w.X, w.Z)
		coordinates[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}

	name := "Route"
	if route.Destination != "" {
		name = "Route to " + route.Destination
	}

	elements := []kml.Element{
		kml.Name(name),
		kml.Placemark(
			kml.Name(name),
			kml.Description(fmt.Sprintf("session %s, %d waypoints", route.SessionID, len(route.Waypoints))),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coordinates...),
			),
		),
	}
	if len(coordinates) > 0 {
		elements = append(elements,
			kml.Placemark(kml.Name("Start"), kml.Point(kml.Coordinates(coordinates[0]))),
			kml.Placemark(kml.Name(route.Destination), kml.Point(kml.Coordinates(coordinates[len(coordinates)-1]))),
		)
	}

	return kml.KML(kml.Document(elements...))
}

// WriteKML writes route as an indented KML document
func WriteKML(w io.Writer, route Route, projector *geo.Projector) error {
	return RouteKML(route, projector).WriteIndent(w, "", "  ")
}

// KMLSink exports each visualized route to a KML file and removes the file
// when the route is cleared
type KMLSink struct {
	mu        sync.Mutex
	path      string
	projector *geo.Projector
}

// NewKMLSink creates a sink writing to path
func NewKMLSink(path string, projector *geo.Projector) *KMLSink {
	return &KMLSink{path: path, projector: projector}
}

func (s *KMLSink) VisualizeRoute(route Route) error {
	var buf bytes.Buffer
	if err := WriteKML(&buf, route, s.projector); err != nil {
		return fmt.Errorf("failed to encode route KML: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write route KML %s: %w", s.path, err)
	}
	return nil
}

func (s *KMLSink) ClearRoute() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove route KML %s: %w", s.path, err)
	}
	return nil
}
