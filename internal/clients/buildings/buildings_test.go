package buildings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/cache"
	"github.com/dpup/campusnav/server/internal/lib/geo"
)

const sampleCatalog = `
buildings:
  - name: Central Library
    aliases: [library, "Main Library"]
    location: {lat: 8.5644027, lng: 76.8879752}
  - name: Admin Block
    position: {x: 10, y: 2, z: -30}
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buildings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCatalog(t *testing.T) {
	projector := geo.NewProjector(geo.DefaultAnchor())
	catalog, err := LoadCatalog(writeCatalog(t, sampleCatalog), projector, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"Central Library", "Admin Block"}, catalog.Names())

	library, ok := catalog.FindBuildingByName("Central Library")
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: geo.ReferenceWorldX, Z: geo.ReferenceWorldZ}, library)

	admin, ok := catalog.FindBuildingByName("Admin Block")
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: 10, Y: 2, Z: -30}, admin)
}

func TestCatalog_AliasesIgnoreCase(t *testing.T) {
	catalog, err := LoadCatalog(writeCatalog(t, sampleCatalog), geo.NewProjector(geo.DefaultAnchor()), nil)
	require.NoError(t, err)

	for _, name := range []string{"library", " LIBRARY ", "main library", "central library"} {
		_, ok := catalog.FindBuildingByName(name)
		assert.True(t, ok, name)
	}

	_, ok := catalog.FindBuildingByName("Gymnasium")
	assert.False(t, ok)
}

func TestNewCatalog_Errors(t *testing.T) {
	position := &r3.Vec{}

	tests := []struct {
		name      string
		buildings []Building
		projector *geo.Projector
	}{
		{
			name:      "missing name",
			buildings: []Building{{Position: position}},
		},
		{
			name:      "no position or location",
			buildings: []Building{{Name: "Hostel"}},
		},
		{
			name:      "location without projector",
			buildings: []Building{{Name: "Hostel", Location: &geo.Point{Latitude: 8.5, Longitude: 76.8}}},
		},
		{
			name:      "duplicate name",
			buildings: []Building{{Name: "A", Position: position}, {Name: "A", Position: position}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.buildings, tt.projector, nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_Empty(t *testing.T) {
	_, err := LoadCatalog(writeCatalog(t, "buildings: []\n"), nil, nil)
	assert.Error(t, err)
}

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) FindBuildingByName(name string) (r3.Vec, bool) {
	args := m.Called(name)
	return args.Get(0).(r3.Vec), args.Bool(1)
}

func TestCachedLookup(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	next := &mockLookup{}
	next.On("FindBuildingByName", "Library").Return(r3.Vec{X: 1}, true).Twice()
	next.On("FindBuildingByName", "Nowhere").Return(r3.Vec{}, false).Once()

	lookup := NewCachedLookup(next, time.Minute, cache.WithClock(clock))

	for i := 0; i < 3; i++ {
		position, ok := lookup.FindBuildingByName("Library")
		require.True(t, ok)
		assert.Equal(t, r3.Vec{X: 1}, position)

		_, ok = lookup.FindBuildingByName("Nowhere")
		assert.False(t, ok)
	}

	now = now.Add(2 * time.Minute)
	_, ok := lookup.FindBuildingByName("Library")
	assert.True(t, ok)

	next.AssertExpectations(t)
	assert.Equal(t, 1, lookup.Stats().FreshEntries)
	assert.Equal(t, 1, lookup.Stats().StaleEntries)
}

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Campus</name>
    <Placemark>
      <name>Central Library</name>
      <ExtendedData>
        <Data name="aliases"><value>library, Main Library</value></Data>
      </ExtendedData>
      <Point><coordinates>76.8879752,8.5644027,0</coordinates></Point>
    </Placemark>
    <Folder>
      <name>Hostels</name>
      <Folder>
        <Placemark>
          <name>Hostel A</name>
          <Point><coordinates> 76.8890,8.5650 </coordinates></Point>
        </Placemark>
      </Folder>
      <Placemark>
        <name>Main road</name>
        <LineString><coordinates>76.88,8.56 76.89,8.57</coordinates></LineString>
      </Placemark>
    </Folder>
  </Document>
</kml>`

func TestParseKML(t *testing.T) {
	buildings, err := ParseKML([]byte(sampleKML))
	require.NoError(t, err)
	require.Len(t, buildings, 2)

	assert.Equal(t, "Central Library", buildings[0].Name)
	assert.Equal(t, []string{"library", "Main Library"}, buildings[0].Aliases)
	assert.Equal(t, &geo.Point{Latitude: 8.5644027, Longitude: 76.8879752}, buildings[0].Location)

	assert.Equal(t, "Hostel A", buildings[1].Name)
	assert.InDelta(t, 8.5650, buildings[1].Location.Latitude, 1e-9)
}

func TestParseKML_Errors(t *testing.T) {
	_, err := ParseKML([]byte("<kml><Document>"))
	assert.Error(t, err)

	_, err = ParseKML([]byte(`<kml><Placemark><name>X</name><Point><coordinates>abc</coordinates></Point></Placemark></kml>`))
	assert.Error(t, err)

	_, err = ParseKML([]byte(`<kml><Placemark><name>X</name><Point><coordinates>10,95</coordinates></Point></Placemark></kml>`))
	assert.Error(t, err)
}

func TestLoadCatalog_KML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campus.kml")
	require.NoError(t, os.WriteFile(path, []byte(sampleKML), 0o600))

	catalog, err := LoadCatalog(path, geo.NewProjector(geo.DefaultAnchor()), zaptest.NewLogger(t))
	require.NoError(t, err)

	library, ok := catalog.FindBuildingByName("main library")
	require.True(t, ok)
	assert.InDelta(t, geo.ReferenceWorldX, library.X, 1e-9)
	assert.InDelta(t, geo.ReferenceWorldZ, library.Z, 1e-9)
}
