// Package parse turns raw cell text from upstream publications into typed
// values. Parsers never fail loudly: malformed input is logged and reported
// as absent.
package parse

import (
	"math"
	"strconv"
	"strings"

	"radarsync/internal/logging"
)

var logger = logging.For("parse")

var placeholders = map[string]struct{}{
	"": {}, "-": {}, "--": {}, "—": {}, "–": {}, "?": {},
	"N/A": {}, "NA": {}, "N/D": {}, "ND": {}, "NULL": {}, "NONE": {}, "NIL": {},
	"S/N": {}, "SN": {}, "SEM INFORMACAO": {}, "SEM INFORMAÇÃO": {}, "NAO INFORMADO": {}, "NÃO INFORMADO": {},
}

// Clean trims whitespace (including non-breaking spaces) and reports whether
// anything meaningful is left.
func Clean(raw string) (string, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, " ", " "))
	if _, junk := placeholders[strings.ToUpper(s)]; junk {
		return "", false
	}
	return s, true
}

// Float parses a decimal written with either separator. When both appear the
// rightmost one is the decimal separator and the other is dropped as a
// thousands separator.
func Float(raw string) (float64, bool) {
	s, ok := Clean(raw)
	if !ok {
		return 0, false
	}
	s = strings.NewReplacer(" ", "", "°", "", "º", "", "'", "").Replace(s)
	s = strings.TrimPrefix(s, "+")

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return 0, false
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Int parses a whole number, accepting a zero fractional part ("80,0").
func Int(raw string) (int, bool) {
	v, ok := Float(raw)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}
