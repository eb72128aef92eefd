package parse

import (
	"fmt"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Bounds is the sanity box coordinates must fall into. It filters obvious
// junk (swapped axes, zeroes, projected meters) and is configured per
// deployment region.
type Bounds struct {
	rect s2.Rect
}

// NewBounds builds a box from degree limits. Longitudes may wrap the
// antimeridian when minLon > maxLon.
func NewBounds(minLat, maxLat, minLon, maxLon float64) (Bounds, error) {
	if minLat > maxLat {
		return Bounds{}, fmt.Errorf("invalid latitude range %v..%v", minLat, maxLat)
	}
	if minLat < -90 || maxLat > 90 || minLon < -180 || maxLon > 180 {
		return Bounds{}, fmt.Errorf("bounds outside the globe: lat %v..%v lon %v..%v", minLat, maxLat, minLon, maxLon)
	}
	return Bounds{rect: s2.Rect{
		Lat: r1.Interval{Lo: (s1.Angle(minLat) * s1.Degree).Radians(), Hi: (s1.Angle(maxLat) * s1.Degree).Radians()},
		Lng: s1.IntervalFromEndpoints((s1.Angle(minLon) * s1.Degree).Radians(), (s1.Angle(maxLon) * s1.Degree).Radians()),
	}}, nil
}

// MustBounds is NewBounds for constant inputs.
func MustBounds(minLat, maxLat, minLon, maxLon float64) Bounds {
	b, err := NewBounds(minLat, maxLat, minLon, maxLon)
	if err != nil {
		panic(err)
	}
	return b
}

// Brazil is the default box: latitude -35..5, longitude -75..-30.
func Brazil() Bounds { return MustBounds(-35, 5, -75, -30) }

func (b Bounds) ContainsLat(deg float64) bool {
	return b.rect.Lat.Contains((s1.Angle(deg) * s1.Degree).Radians())
}

func (b Bounds) ContainsLon(deg float64) bool {
	return b.rect.Lng.Contains((s1.Angle(deg) * s1.Degree).Radians())
}

// Contains reports whether the point lies inside the box.
func (b Bounds) Contains(lat, lon float64) bool {
	return b.ContainsLat(lat) && b.ContainsLon(lon)
}

func (b Bounds) String() string {
	return fmt.Sprintf("lat %.4f..%.4f lon %.4f..%.4f",
		s1.Angle(b.rect.Lat.Lo).Degrees(), s1.Angle(b.rect.Lat.Hi).Degrees(),
		s1.Angle(b.rect.Lng.Lo).Degrees(), s1.Angle(b.rect.Lng.Hi).Degrees())
}
