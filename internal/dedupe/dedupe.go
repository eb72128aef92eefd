// Package dedupe collapses observations that share a coordinate identity key.
package dedupe

import (
	"radarsync/internal/keys"
	"radarsync/internal/logging"
	"radarsync/internal/models"
)

var logger = logging.For("dedupe")

// Observations returns one observation per coordinate key, in first-seen key
// order. When two observations share a key the one with strictly more
// populated fields wins; on a tie the earlier one is kept.
func Observations(in []models.RawObservation) []models.RawObservation {
	index := make(map[keys.Coordinate]int, len(in))
	out := make([]models.RawObservation, 0, len(in))
	replaced := 0
	for _, o := range in {
		k := o.Key()
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, o)
			continue
		}
		if o.Fields.Populated() > out[i].Fields.Populated() {
			out[i] = o
			replaced++
		}
	}
	if dropped := len(in) - len(out); dropped > 0 {
		logger.Info("collapsed duplicate coordinates",
			"input", len(in), "unique", len(out), "dropped", dropped, "replaced_by_richer", replaced)
	}
	return out
}

// Stream drains in and deduplicates what it received.
func Stream(in <-chan models.RawObservation) []models.RawObservation {
	var all []models.RawObservation
	for o := range in {
		all = append(all, o)
	}
	return Observations(all)
}
