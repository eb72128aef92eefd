// Package geocode turns street addresses into coordinates. The external
// service enforces call spacing, so every caller goes through Limited, which
// serializes calls at a fixed interval and caches answers.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"radarsync/internal/logging"
)

var logger = logging.For("geocode")

// MinInterval is the shortest spacing allowed between two upstream calls.
const MinInterval = time.Second

// ErrInterval is returned for a spacing below MinInterval.
var ErrInterval = errors.New("geocode: interval below one second")

// Point is a resolved address.
type Point struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	City        string
	State       string
	Road        string
}

// Geocoder resolves an address. A nil Point with a nil error means the
// address is unknown.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (*Point, error)
}

// Limited spaces calls to next by at least the configured interval and
// remembers results, misses included, for the cache TTL.
type Limited struct {
	next    Geocoder
	limiter *rate.Limiter
	cache   *cache.Cache
	mu      sync.Mutex

	calls, hits, misses, failures int
}

// NewLimited wraps next. interval must be at least MinInterval.
func NewLimited(next Geocoder, interval, ttl time.Duration) (*Limited, error) {
	if interval < MinInterval {
		return nil, fmt.Errorf("%w: %s", ErrInterval, interval)
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		cache:   cache.New(ttl, 2*ttl),
	}, nil
}

// Stats reports upstream calls, cache hits, unresolved addresses and errors.
type Stats struct {
	Calls    int
	Hits     int
	Misses   int
	Failures int
}

func (l *Limited) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Calls: l.calls, Hits: l.hits, Misses: l.misses, Failures: l.failures}
}

// Resolve answers from the cache or waits for its turn and asks upstream.
// Calls are serialized: concurrent callers queue behind one another.
func (l *Limited) Resolve(ctx context.Context, address string) (*Point, error) {
	key := normalize(address)
	if key == "" {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.cache.Get(key); ok {
		l.hits++
		p, _ := v.(*Point)
		return p, nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	l.calls++
	p, err := l.next.Resolve(ctx, address)
	if err != nil {
		l.failures++
		logger.Warn("geocoding failed", "address", address, "error", err)
		return nil, err
	}
	if p == nil {
		l.misses++
		logger.Debug("address not found", "address", address)
	} else {
		logger.Debug("address resolved", "address", address, "lat", p.Latitude, "lon", p.Longitude)
	}
	l.cache.SetDefault(key, p)
	return p, nil
}

func normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
