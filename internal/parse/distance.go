package parse

import (
	"regexp"
	"strings"
)

var (
	kmPlusMetersRe = regexp.MustCompile(`^KM\s*(\d+(?:[.,]\d+)?)\s*\+\s*(\d+)\s*M?$`)
	kmOnlyRe       = regexp.MustCompile(`^KM\s*(\d+(?:[.,]\d+)?)$`)
)

// Distance parses a distance along a route in kilometers: "Km 123 + 400 m"
// becomes 123.4, "Km 45" becomes 45, and a bare decimal is taken as is.
func Distance(raw string) (float64, bool) {
	s, ok := Clean(raw)
	if !ok {
		return 0, false
	}
	norm := strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	norm = strings.TrimSuffix(strings.TrimSuffix(norm, "."), " ")

	if m := kmPlusMetersRe.FindStringSubmatch(norm); m != nil {
		km, okKm := Float(m[1])
		meters, okM := Float(m[2])
		if !okKm || !okM {
			return 0, false
		}
		return km + meters/1000, true
	}
	if m := kmOnlyRe.FindStringSubmatch(norm); m != nil {
		return Float(m[1])
	}
	if v, ok := Float(norm); ok && v >= 0 {
		return v, true
	}
	logger.Debug("unparseable distance", "raw", s)
	return 0, false
}
