package gps

import (
	"time"

	"github.com/dpup/campusnav/server/internal/lib/geo"
)

// Fix is a single reading from a GPS receiver
type Fix struct {
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy" validate:"gte=0"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Update is delivered to subscribers. Exactly one of Fix or World is set:
// real receivers report a Fix, simulations report a world position directly.
type Update struct {
	Fix   *Fix         `json:"fix,omitempty"`
	World *geo.WorldXZ `json:"world,omitempty"`
}

// FixUpdate wraps a receiver reading
func FixUpdate(fix Fix) Update {
	return Update{Fix: &fix}
}

// SimulatedUpdate wraps a simulated ground-plane position
func SimulatedUpdate(x, z float64) Update {
	return Update{World: &geo.WorldXZ{X: x, Z: z}}
}

// IsSimulated reports whether the update carries a world position
func (u Update) IsSimulated() bool {
	return u.World != nil
}

// Subscriber receives position updates. It is called synchronously from
// the publishing goroutine and should return promptly.
type Subscriber func(Update)

// Source emits position updates to its subscribers
type Source interface {
	// Subscribe registers fn and returns a function that removes it
	Subscribe(fn Subscriber) (unsubscribe func())
}
