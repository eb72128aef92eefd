package parse

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	minSpeed = 0   // exclusive
	maxSpeed = 200 // inclusive
)

// Speed holds the limits read from one cell. Light is always set on success;
// Heavy only for combined "leve/pesado" encodings.
type Speed struct {
	Light *int
	Heavy *int
}

var (
	unitRe = regexp.MustCompile(`\s*KM\s*/?\s*H\b|\s*KMH\b|\s*KM/H`)

	combinedRe    = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)(?:\s*KM)?\b`)
	unitRangeRe   = regexp.MustCompile(`(\d+)\s*(?:-|–|A|ATE|ATÉ)\s*(\d+)\s*KM\b`)
	bareRangeRe   = regexp.MustCompile(`^(\d+)\s*(?:-|–)\s*(\d+)$`)
	inequalityRe  = regexp.MustCompile(`^(?:<=|=<|≤|<|ATE|ATÉ|MAX\.?|MAXIMA|MÁXIMA)\s*(\d+)(?:\s*KM)?\b`)
	bareNumberRe  = regexp.MustCompile(`^(\d+)(?:[.,]0+)?(?:\s*KM)?$`)
	speedTokensRe = regexp.MustCompile(`(?:^|[^\w-])(\d+\s*(?:/\s*\d+)?\s*KM)\b`)
)

// ParseSpeed reads a speed limit cell. Rules are tried in order: combined
// "leve/pesado" ("100/080"), a unit-annotated range with optional qualifier
// ("1 21-50 KM Comercial"), a bare range ("121-140"), an inequality ("<= 20")
// and a bare number with optional unit ("80 km/h"). Ranges are averaged with
// integer division. Results outside (0, 200] are rejected.
func ParseSpeed(raw string) (Speed, bool) {
	s, ok := Clean(raw)
	if !ok {
		return Speed{}, false
	}
	norm := strings.ToUpper(s)
	norm = unitRe.ReplaceAllString(norm, " KM")
	norm = strings.Join(strings.Fields(norm), " ")

	speed, rule, ok := matchSpeed(norm)
	if !ok {
		logger.Debug("unparseable speed", "raw", s, "rule", rule)
		return Speed{}, false
	}
	attrs := []any{"raw", s, "rule", rule, "light", *speed.Light}
	if speed.Heavy != nil {
		attrs = append(attrs, "heavy", *speed.Heavy)
	}
	logger.Debug("parsed speed", attrs...)
	return speed, true
}

func matchSpeed(s string) (Speed, string, bool) {
	if m := combinedRe.FindStringSubmatch(s); m != nil {
		light, ok := validSpeed(m[1])
		if !ok {
			return Speed{}, "combined-out-of-range", false
		}
		out := Speed{Light: &light}
		if heavy, ok := validSpeed(m[2]); ok {
			out.Heavy = &heavy
		}
		return out, "combined", true
	}
	if m := unitRangeRe.FindStringSubmatch(s); m != nil {
		return averaged(m[1], m[2], "unit-range")
	}
	if m := bareRangeRe.FindStringSubmatch(s); m != nil {
		return averaged(m[1], m[2], "bare-range")
	}
	if m := inequalityRe.FindStringSubmatch(s); m != nil {
		return single(m[1], "inequality")
	}
	if m := bareNumberRe.FindStringSubmatch(s); m != nil {
		return single(m[1], "number")
	}
	return Speed{}, "no-match", false
}

func averaged(lo, hi, rule string) (Speed, string, bool) {
	a, errA := strconv.Atoi(lo)
	b, errB := strconv.Atoi(hi)
	if errA != nil || errB != nil {
		return Speed{}, rule, false
	}
	v := (a + b) / 2
	if !inRange(v) {
		return Speed{}, rule + "-out-of-range", false
	}
	return Speed{Light: &v}, rule, true
}

func single(raw, rule string) (Speed, string, bool) {
	v, ok := validSpeed(raw)
	if !ok {
		return Speed{}, rule + "-out-of-range", false
	}
	return Speed{Light: &v}, rule, true
}

func validSpeed(raw string) (int, bool) {
	v, err := strconv.Atoi(raw)
	if err != nil || !inRange(v) {
		return 0, false
	}
	return v, true
}

func inRange(v int) bool { return v > minSpeed && v <= maxSpeed }

// FindSpeed extracts the first speed-looking token ("60 km/h", "80/60km")
// from free text such as a description, and parses it. Digits glued to a
// hyphen belong to a highway designation ("SP-070 KM 20") and are ignored.
func FindSpeed(text string) (Speed, bool) {
	norm := unitRe.ReplaceAllString(strings.ToUpper(text), " KM")
	m := speedTokensRe.FindStringSubmatch(norm)
	if m == nil {
		return Speed{}, false
	}
	return ParseSpeed(m[1])
}
