package buildings

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dpup/campusnav/server/internal/cache"
)

// Lookup resolves building names to world positions
type Lookup interface {
	FindBuildingByName(name string) (r3.Vec, bool)
}

type lookupResult struct {
	position r3.Vec
	found    bool
}

// CachedLookup memoizes another Lookup, including misses, for a fixed TTL
type CachedLookup struct {
	next  Lookup
	cache *cache.Cache[lookupResult]
	ttl   time.Duration
}

// NewCachedLookup wraps next with a TTL cache
func NewCachedLookup(next Lookup, ttl time.Duration, opts ...cache.Option) *CachedLookup {
	return &CachedLookup{
		next:  next,
		cache: cache.New[lookupResult](opts...),
		ttl:   ttl,
	}
}

// FindBuildingByName implements Lookup
func (l *CachedLookup) FindBuildingByName(name string) (r3.Vec, bool) {
	if result, ok := l.cache.Get(name); ok {
		return result.position, result.found
	}

	position, found := l.next.FindBuildingByName(name)
	l.cache.Set(name, lookupResult{position: position, found: found}, l.ttl, "building_lookup")
	return position, found
}

// Stats exposes the underlying cache statistics
func (l *CachedLookup) Stats() cache.Stats {
	return l.cache.Stats()
}

// StartPeriodicCleanup evicts expired lookups every interval until ctx is
// cancelled
func (l *CachedLookup) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	l.cache.StartPeriodicCleanup(ctx, interval)
}
