// Package keys builds the identity keys shared by deduplication, the store and
// the object storage layout.
package keys

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Precision is the number of decimals kept in a coordinate key (about 1 mm).
const Precision = 8

var scale = math.Pow10(Precision)

// Coordinate identifies a physical location: latitude and longitude rounded to
// Precision decimals. Two observations with equal keys are the same radar.
type Coordinate struct {
	Lat float64
	Lon float64
}

// For builds the key of a latitude/longitude pair.
func For(lat, lon float64) Coordinate {
	return Coordinate{Lat: Round(lat), Lon: Round(lon)}
}

// Round rounds v half away from zero to Precision decimals.
func Round(v float64) float64 {
	return math.Round(v*scale) / scale
}

// String renders the key as stored in the coord_key column.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', Precision, 64) + "," + strconv.FormatFloat(c.Lon, 'f', Precision, 64)
}

// Parse reverses String.
func Parse(s string) (Coordinate, error) {
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return Coordinate{}, fmt.Errorf("invalid coordinate key %q", s)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude in key %q: %w", s, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude in key %q: %w", s, err)
	}
	return For(la, lo), nil
}
