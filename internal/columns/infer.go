package columns

import (
	"math"
	"regexp"
	"strings"

	"radarsync/internal/logging"
	"radarsync/internal/parse"
)

var logger = logging.For("columns")

// Method says how a column was chosen.
type Method string

const (
	MethodName    Method = "name"
	MethodContent Method = "content"
	MethodScore   Method = "score"
)

const (
	speedSampleRows   = 10
	speedMinRatio     = 0.6
	speedMinDistinct  = 3
	speedContentLow   = 20
	speedContentHigh  = 200
	scoreSampleRows   = 20
	coordSampleRows   = 10
	proximityDistance = 2
)

// Decision records one inferred column and why it was picked.
type Decision struct {
	Field  Field
	Index  int
	Method Method
	Score  float64
	Reason string
}

// Mapping is the inferred layout of a table.
type Mapping struct {
	index     [numFields]int
	Decisions []Decision
}

func newMapping() Mapping {
	var m Mapping
	for i := range m.index {
		m.index[i] = -1
	}
	return m
}

// Index returns the column of f, or false when it was not found.
func (m Mapping) Index(f Field) (int, bool) {
	if f < 0 || f >= numFields || m.index[f] < 0 {
		return -1, false
	}
	return m.index[f], true
}

func (m Mapping) Has(f Field) bool {
	_, ok := m.Index(f)
	return ok
}

// Value returns the cell of row holding f, or "" when f is unmapped or the
// row is short.
func (m Mapping) Value(row []string, f Field) string {
	i, ok := m.Index(f)
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Fixed builds a mapping from known positions, for sources with a documented
// layout. Negative indexes are ignored.
func Fixed(positions map[Field]int) Mapping {
	m := newMapping()
	for f, i := range positions {
		if i >= 0 {
			m.set(Decision{Field: f, Index: i, Method: MethodName, Score: 1, Reason: "fixed layout"})
		}
	}
	return m
}

func (m *Mapping) set(d Decision) {
	m.index[d.Field] = d.Index
	m.Decisions = append(m.Decisions, d)
}

func (m Mapping) taken(col int) bool {
	for _, i := range m.index {
		if i == col {
			return true
		}
	}
	return false
}

// Infer guesses the layout from an optional header and a sample of data rows.
// It matches header keywords first, then falls back to content: coordinates
// by bounding box, municipality by scoring, speed by value patterns.
func Infer(header []string, rows [][]string, bounds parse.Bounds) Mapping {
	m := newMapping()
	width := len(header)
	for _, r := range rows {
		width = max(width, len(r))
	}

	if len(header) > 0 {
		matchNames(&m, header)
	}
	if !m.Has(Latitude) || !m.Has(Longitude) {
		detectCoordinates(&m, rows, width, bounds)
	}
	scoreMunicipality(&m, header, rows, width)
	if !m.Has(Speed) {
		detectSpeed(&m, rows, width)
	}

	for _, d := range m.Decisions {
		name := ""
		if d.Index < len(header) {
			name = header[d.Index]
		}
		logger.Info("column inferred",
			"field", d.Field.String(),
			"index", d.Index,
			"header", name,
			"method", string(d.Method),
			"score", d.Score,
			"reason", d.Reason)
	}
	for f := Field(0); f < numFields; f++ {
		if !m.Has(f) {
			logger.Debug("column not found", "field", f.String())
		}
	}
	return m
}

func matchNames(m *Mapping, header []string) {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = fold(h)
	}
	for _, f := range nameOrder {
		for col, h := range folded {
			if h == "" || m.taken(col) {
				continue
			}
			if kw, ok := rules[f].match(h); ok {
				m.set(Decision{Field: f, Index: col, Method: MethodName, Score: 1,
					Reason: "header " + quote(header[col]) + " matched keyword " + quote(kw)})
				break
			}
		}
	}
}

// detectCoordinates scans the first data row for decimal values inside the
// bounding box. A column only in the longitude range wins over one that also
// fits the latitude range, since the two ranges can overlap.
func detectCoordinates(m *Mapping, rows [][]string, width int, bounds parse.Bounds) {
	first := firstNonEmpty(rows)
	if first == nil {
		return
	}
	var latCands, lonCands []int
	inLat := map[int]bool{}
	for col := 0; col < width && col < len(first); col++ {
		if m.taken(col) || !hasDecimal(first[col]) {
			continue
		}
		v, ok := parse.Float(first[col])
		if !ok {
			continue
		}
		if bounds.ContainsLat(v) {
			latCands = append(latCands, col)
			inLat[col] = true
		}
		if bounds.ContainsLon(v) {
			lonCands = append(lonCands, col)
		}
	}

	if !m.Has(Longitude) {
		pick := -1
		for _, c := range lonCands {
			if !inLat[c] {
				pick = c
				break
			}
		}
		if pick < 0 && len(lonCands) > 0 {
			pick = lonCands[len(lonCands)-1]
		}
		if pick >= 0 {
			m.set(Decision{Field: Longitude, Index: pick, Method: MethodContent,
				Score:  coverage(rows, pick, bounds.ContainsLon),
				Reason: "first row value " + quote(first[pick]) + " inside longitude bounds"})
		}
	}
	if !m.Has(Latitude) {
		lon, _ := m.Index(Longitude)
		for _, c := range latCands {
			if c == lon || m.taken(c) {
				continue
			}
			m.set(Decision{Field: Latitude, Index: c, Method: MethodContent,
				Score:  coverage(rows, c, bounds.ContainsLat),
				Reason: "first row value " + quote(first[c]) + " inside latitude bounds"})
			break
		}
	}
}

// coverage is the share of sampled rows whose value at col parses and passes
// in.
func coverage(rows [][]string, col int, in func(float64) bool) float64 {
	seen, hit := 0, 0
	for _, r := range sample(rows, coordSampleRows) {
		if col >= len(r) {
			continue
		}
		if _, ok := parse.Clean(r[col]); !ok {
			continue
		}
		seen++
		if v, ok := parse.Float(r[col]); ok && in(v) {
			hit++
		}
	}
	if seen == 0 {
		return 0
	}
	return round2(float64(hit) / float64(seen))
}

// scoreMunicipality ranks text columns by how much their values look like
// place names. Highway designations, numbers and known non-place words push a
// column down; a matching header and closeness to the coordinate columns push
// it up. The best column wins only with a positive score.
func scoreMunicipality(m *Mapping, header []string, rows [][]string, width int) {
	named, hasName := m.Index(Municipality)
	if hasName {
		// Re-evaluated below together with the other candidates.
		m.index[Municipality] = -1
		m.Decisions = removeDecision(m.Decisions, Municipality)
	}

	var coords []int
	for _, f := range []Field{Latitude, Longitude} {
		if i, ok := m.Index(f); ok {
			coords = append(coords, i)
		}
	}

	best, bestScore, bestReason := -1, 0.0, ""
	for col := 0; col < width; col++ {
		if m.taken(col) {
			continue
		}
		score, reason := municipalityScore(rows, col)
		if hasName && col == named {
			score++
			reason += ", header bonus"
		}
		if score > 0 {
			for _, c := range coords {
				if abs(c-col) <= proximityDistance {
					score += 0.5
					reason += ", near coordinates"
					break
				}
			}
		}
		score = round2(score)
		if score > bestScore {
			best, bestScore, bestReason = col, score, reason
		}
	}
	if best < 0 || bestScore <= 0 {
		if hasName {
			logger.Info("municipality header rejected by content",
				"index", named, "header", header[named])
		}
		return
	}
	m.set(Decision{Field: Municipality, Index: best, Method: MethodScore, Score: bestScore, Reason: bestReason})
}

// municipalityScore averages per-value scores over sampled non-empty cells.
func municipalityScore(rows [][]string, col int) (float64, string) {
	counts := map[Class]int{}
	total := 0.0
	n := 0
	for _, r := range sample(rows, scoreSampleRows) {
		if col >= len(r) {
			continue
		}
		c := Classify(r[col])
		if c == ClassEmpty {
			continue
		}
		counts[c]++
		n++
		switch c {
		case ClassNumber:
			total -= 3
		case ClassHighway:
			total -= 2
		case ClassNonPlace:
			total -= 1.5
		case ClassPlace:
			total++
		}
	}
	if n == 0 {
		return 0, "no values"
	}
	var parts []string
	for _, c := range []Class{ClassPlace, ClassHighway, ClassNonPlace, ClassNumber, ClassUnknown} {
		if counts[c] > 0 {
			parts = append(parts, string(c)+"="+itoa(counts[c]))
		}
	}
	return total / float64(n), strings.Join(parts, " ")
}

var speedValueRes = []*regexp.Regexp{
	regexp.MustCompile(`^\d{2,3}$`),
	regexp.MustCompile(`(?i)^\d{2,3}\s*km\s*/?\s*h?$`),
	regexp.MustCompile(`^\d{2,3}\s*/\s*\d{2,3}`),
	regexp.MustCompile(`^\d{1,3}\s*-\s*\d{2,3}`),
	regexp.MustCompile(`^(?:<=|≤|<)\s*\d{2,3}`),
}

// detectSpeed looks for a column whose sampled values mostly read as speed
// limits between 20 and 200 and that shows at least three distinct limits.
func detectSpeed(m *Mapping, rows [][]string, width int) {
	best, bestRatio, bestReason := -1, 0.0, ""
	for col := 0; col < width; col++ {
		if m.taken(col) {
			continue
		}
		nonEmpty, matched := 0, 0
		distinct := map[int]struct{}{}
		for _, r := range sample(rows, speedSampleRows) {
			if col >= len(r) {
				continue
			}
			v, ok := parse.Clean(r[col])
			if !ok {
				continue
			}
			nonEmpty++
			if !matchesAny(speedValueRes, v) {
				continue
			}
			s, ok := parse.ParseSpeed(v)
			if !ok || *s.Light < speedContentLow || *s.Light > speedContentHigh {
				continue
			}
			matched++
			distinct[*s.Light] = struct{}{}
		}
		if nonEmpty == 0 {
			continue
		}
		ratio := float64(matched) / float64(nonEmpty)
		if ratio >= speedMinRatio && len(distinct) >= speedMinDistinct && ratio > bestRatio {
			best, bestRatio = col, ratio
			bestReason = itoa(matched) + "/" + itoa(nonEmpty) + " sampled values are speeds, " +
				itoa(len(distinct)) + " distinct"
		}
	}
	if best >= 0 {
		m.set(Decision{Field: Speed, Index: best, Method: MethodContent, Score: round2(bestRatio), Reason: bestReason})
	}
}

// LooksLikeHeader reports whether row reads as column titles rather than
// data: no cell is an in-bounds coordinate and most cells are not numbers.
func LooksLikeHeader(row []string, bounds parse.Bounds) bool {
	nonEmpty, numeric := 0, 0
	for _, cell := range row {
		v, ok := parse.Clean(cell)
		if !ok {
			continue
		}
		nonEmpty++
		f, isNum := parse.Float(v)
		if !isNum {
			continue
		}
		numeric++
		if hasDecimal(v) && (bounds.ContainsLat(f) || bounds.ContainsLon(f)) {
			return false
		}
	}
	return nonEmpty > 0 && numeric*2 < nonEmpty
}

func firstNonEmpty(rows [][]string) []string {
	for _, r := range rows {
		for _, c := range r {
			if _, ok := parse.Clean(c); ok {
				return r
			}
		}
	}
	return nil
}

func sample(rows [][]string, n int) [][]string {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

func hasDecimal(s string) bool {
	return strings.ContainsAny(s, ".,")
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func removeDecision(ds []Decision, f Field) []Decision {
	out := ds[:0]
	for _, d := range ds {
		if d.Field != f {
			out = append(out, d)
		}
	}
	return out
}

func quote(s string) string { return `"` + s + `"` }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
