package buildings

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// KML placemarks as exported by Google Earth and My Maps. Only the parts the
// catalog needs are decoded.
type kmlDocument struct {
	Containers []kmlContainer `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlContainer struct {
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name  string `xml:"name"`
	Point *struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
	Data []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value"`
	} `xml:"ExtendedData>Data"`
}

// ParseKML extracts buildings from the point placemarks of a KML document.
// Placemarks without a name or point are skipped. A Data field named
// "aliases" holds comma-separated alternative names.
func ParseKML(data []byte) ([]Building, error) {
	var doc kmlDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse KML: %w", err)
	}

	var placemarks []kmlPlacemark
	placemarks = append(placemarks, doc.Placemarks...)
	for _, c := range doc.Containers {
		placemarks = collectPlacemarks(placemarks, c)
	}
	for _, f := range doc.Folders {
		placemarks = collectPlacemarks(placemarks, f)
	}

	buildings := make([]Building, 0, len(placemarks))
	for _, p := range placemarks {
		b, ok, err := placemarkBuilding(p)
		if err != nil {
			return nil, err
		}
		if ok {
			buildings = append(buildings, b)
		}
	}
	return buildings, nil
}

func collectPlacemarks(placemarks []kmlPlacemark, c kmlContainer) []kmlPlacemark {
	placemarks = append(placemarks, c.Placemarks...)
	for _, f := range c.Folders {
		placemarks = collectPlacemarks(placemarks, f)
	}
	return placemarks
}

func placemarkBuilding(p kmlPlacemark) (Building, bool, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" || p.Point == nil {
		return Building{}, false, nil
	}

	// KML coordinates are "longitude,latitude[,altitude]"
	fields := strings.Split(strings.TrimSpace(p.Point.Coordinates), ",")
	if len(fields) < 2 {
		return Building{}, false, fmt.Errorf("placemark %q: malformed coordinates %q", name, p.Point.Coordinates)
	}
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if errLng != nil || errLat != nil {
		return Building{}, false, fmt.Errorf("placemark %q: malformed coordinates %q", name, p.Point.Coordinates)
	}
	location, err := geo.NewPoint(lat, lng)
	if err != nil {
		return Building{}, false, fmt.Errorf("placemark %q: %w", name, err)
	}

	b := Building{Name: name, Location: &location}
	for _, d := range p.Data {
		if d.Name != "aliases" {
			continue
		}
		for _, alias := range strings.Split(d.Value, ",") {
			if alias = strings.TrimSpace(alias); alias != "" {
				b.Aliases = append(b.Aliases, alias)
			}
		}
	}
	return b, true, nil
}
