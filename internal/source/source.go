// Package source holds the adapters that turn each upstream publication into
// a stream of RawObservation values.
//
// Adapters never fail a run. A fetch error is logged and produces an empty
// stream; a malformed row is skipped. Callers see only the rows that parsed.
package source

import (
	"context"
	"errors"
	"strings"

	"radarsync/internal/logging"
	"radarsync/internal/models"
)

var logger = logging.For("source")

// ErrFetch wraps failures to obtain a source's raw bytes.
var ErrFetch = errors.New("source: fetch failed")

// Capability is a bit set describing what an adapter needs to run.
type Capability uint8

const (
	// CachedCopy means the adapter can read a local or object-store copy.
	CachedCopy Capability = 1 << iota
	// Network means the adapter downloads its publication.
	Network
	// Geocoding means the adapter resolves addresses through a rate-limited
	// external service and must not run alongside other geocoding work.
	Geocoding
)

// Has reports whether all bits of o are set.
func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	var parts []string
	if c.Has(CachedCopy) {
		parts = append(parts, "cached-copy")
	}
	if c.Has(Network) {
		parts = append(parts, "network")
	}
	if c.Has(Geocoding) {
		parts = append(parts, "geocoding")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Adapter produces the observations of one source. Fetch closes the returned
// channel when the source is exhausted or ctx is done.
type Adapter interface {
	Source() models.Source
	Capabilities() Capability
	Fetch(ctx context.Context) <-chan models.RawObservation
}

// emit streams obs on a new channel, stopping early when ctx is done.
func emit(ctx context.Context, produce func(yield func(models.RawObservation) bool)) <-chan models.RawObservation {
	out := make(chan models.RawObservation)
	go func() {
		defer close(out)
		produce(func(o models.RawObservation) bool {
			select {
			case out <- o:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return out
}
