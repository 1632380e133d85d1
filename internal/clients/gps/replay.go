package gps

import (
	"context"
	"fmt"
	"time"

	"github.com/tkrajina/gpxgo/gpx"
	"go.uber.org/zap"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// LoadGPX reads every track point of a GPX file as a fix, in file order
func LoadGPX(path string) ([]Fix, error) {
	gpxFile, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX file: %w", err)
	}
	return fixesFromGPX(gpxFile), nil
}

// ParseGPX decodes GPX data into fixes
func ParseGPX(data []byte) ([]Fix, error) {
	gpxFile, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX data: %w", err)
	}
	return fixesFromGPX(gpxFile), nil
}

func fixesFromGPX(gpxFile *gpx.GPX) []Fix {
	var fixes []Fix
	for _, track := range gpxFile.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				fix := Fix{
					Latitude:  p.Latitude,
					Longitude: p.Longitude,
					Timestamp: p.Timestamp,
				}
				if p.HorizontalDilution.NotNull() {
					fix.Accuracy = p.HorizontalDilution.Value()
				}
				fixes = append(fixes, fix)
			}
		}
	}
	return fixes
}

// DecodeTrack turns a Google encoded polyline into untimed fixes
func DecodeTrack(encoded string) ([]Fix, error) {
	points, err := geo.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	fixes := make([]Fix, len(points))
	for i, p := range points {
		fixes[i] = Fix{Latitude: p.Latitude, Longitude: p.Longitude}
	}
	return fixes, nil
}

// Replay publishes a recorded track one fix at a time
type Replay struct {
	*Broadcaster

	fixes    []Fix
	interval time.Duration
	logger   *zap.Logger
}

// NewReplay creates a replay that publishes a fix every interval. Fixes are
// re-stamped with the wall clock when published.
func NewReplay(fixes []Fix, interval time.Duration, logger *zap.Logger) *Replay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replay{
		Broadcaster: NewBroadcaster(),
		fixes:       fixes,
		interval:    interval,
		logger:      logger,
	}
}

// Len returns the number of fixes in the track
func (r *Replay) Len() int {
	return len(r.fixes)
}

// Run publishes every fix, waiting interval between them. It returns
// ctx.Err() when cancelled before the track ends.
func (r *Replay) Run(ctx context.Context) error {
	r.logger.Info("Replaying track", zap.Int("fixes", len(r.fixes)), zap.Duration("interval", r.interval))

	for i, fix := range r.fixes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.interval):
			}
		}
		fix.Timestamp = time.Now()
		r.Publish(FixUpdate(fix))
	}
	return nil
}
