package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"radarsync/internal/columns"
	"radarsync/internal/geocode"
	"radarsync/internal/models"
	"radarsync/internal/parse"
)

var (
	municipalityHeaderRe = regexp.MustCompile(`(?i)^(?:MUNIC[IÍ]PIO|CIDADE|LOCALIDADE)\s*[:\-–]\s*(.+)$`)
	regionHeaderRe       = regexp.MustCompile(`(?i)^(?:REGI[AÃ]O|REGIONAL|ESTADO|UF)\s*[:\-–]\s*(.+)$`)
	sequenceRe           = regexp.MustCompile(`^(\d{1,4})\s*[-.)]?\s+(.+)$`)
	addressPrefix        = `(?:AV\.?|AVENIDA|RUA|R\.|ROD\.?|RODOVIA|ESTR\.?|ESTRADA|AL\.?|ALAMEDA|TRAV\.?|TRAVESSA|PRA[CÇ]A|VIADUTO|PONTE|VIA)`
	addressStartRe       = regexp.MustCompile(`(?i)^` + addressPrefix + `\s`)
	addressInRe          = regexp.MustCompile(`(?i)(?:^|\s)` + addressPrefix + `\s`)
	directionRe          = regexp.MustCompile(`(?i)\bSENTIDO\s*[:\-]?\s*(.+?)(?:\s+\d+\s*(?:/\s*\d+)?\s*KM.*)?$`)
	speedTokenRe         = regexp.MustCompile(`(?i)(?:^|\s)\d+\s*(?:/\s*\d+)?\s*KM\s*/?\s*H?\b`)
)

// tableRow is one assembled entry of the PDF table before geocoding.
type tableRow struct {
	Seq          int
	Text         string
	Kind         string
	Address      string
	Direction    string
	Municipality string
	Region       string
	Speed        parse.Speed
	HasSpeed     bool
	lines        int
}

// Query is the free-text address sent to the geocoder.
func (r tableRow) Query() string {
	parts := []string{r.Address}
	if r.Municipality != "" {
		parts = append(parts, r.Municipality)
	}
	if r.Region != "" {
		parts = append(parts, r.Region)
	}
	parts = append(parts, "Brasil")
	return strings.Join(parts, ", ")
}

// assembleRows rebuilds table rows from extracted text lines. A row starts
// with a sequence number; when its address was wrapped onto the following
// line, that line starts with a street-type prefix and is joined back.
// Section header lines set the municipality or region of the rows below.
// Anything else (page titles, column captions, footers) is ignored.
func assembleRows(lines []string) []tableRow {
	var (
		rows                 []tableRow
		municipality, region string
	)
	for _, raw := range lines {
		line := strings.Join(strings.Fields(raw), " ")
		if line == "" {
			continue
		}
		if m := municipalityHeaderRe.FindStringSubmatch(line); m != nil {
			name, state := columns.SplitState(m[1])
			municipality = name
			if state != "" {
				region = state
			}
			continue
		}
		if m := regionHeaderRe.FindStringSubmatch(line); m != nil {
			region = strings.TrimSpace(m[1])
			continue
		}
		if m := sequenceRe.FindStringSubmatch(line); m != nil {
			seq, _ := strconv.Atoi(m[1])
			rows = append(rows, tableRow{Seq: seq, Text: m[2], Municipality: municipality, Region: region, lines: 1})
			continue
		}
		if n := len(rows); n > 0 && rows[n-1].lines == 1 && addressStartRe.MatchString(line) {
			rows[n-1].Text += " " + line
			rows[n-1].lines++
		}
	}
	for i := range rows {
		rows[i].split()
	}
	return rows
}

// split pulls kind, address, direction and speed out of the row text.
func (r *tableRow) split() {
	text := r.Text
	r.Speed, r.HasSpeed = parse.FindSpeed(text)

	if m := directionRe.FindStringSubmatchIndex(text); m != nil {
		r.Direction = strings.TrimSpace(text[m[2]:m[3]])
		text = strings.TrimSpace(text[:m[0]])
	}
	text = strings.Join(strings.Fields(speedTokenRe.ReplaceAllString(text, " ")), " ")

	if loc := addressInRe.FindStringIndex(text); loc != nil {
		r.Kind = strings.TrimSpace(text[:loc[0]])
		r.Address = strings.TrimSpace(text[loc[0]:])
	} else {
		r.Address = text
	}
}

// PDFGeocoded reads a PDF table of street addresses and resolves each
// address to a coordinate. Rows whose address cannot be resolved are
// skipped.
type PDFGeocoded struct {
	Fetcher  *Fetcher
	Location Location
	Parser   *parse.Parser
	Geocoder geocode.Geocoder
	Defaults models.Metadata
}

func (p *PDFGeocoded) Source() models.Source { return models.SourceOfficialD }

func (p *PDFGeocoded) Capabilities() Capability {
	return p.Fetcher.capabilitiesOf(p.Location) | Geocoding
}

func (p *PDFGeocoded) Fetch(ctx context.Context) <-chan models.RawObservation {
	return emit(ctx, func(yield func(models.RawObservation) bool) {
		data := fetchOrEmpty(ctx, p.Fetcher, p.Source(), p.Location)
		if data == nil {
			return
		}
		lines, err := pdfLines(data)
		if err != nil {
			logger.Error("could not extract pdf text", "source", p.Source(), "error", err)
			return
		}
		rows := assembleRows(lines)
		logger.Info("assembled pdf rows", "source", p.Source(), "lines", len(lines), "rows", len(rows))

		resolved, skipped := 0, 0
		for _, row := range rows {
			o, ok := p.resolve(ctx, row)
			if !ok {
				skipped++
				if ctx.Err() != nil {
					break
				}
				continue
			}
			resolved++
			if !yield(o) {
				return
			}
		}
		logger.Info("geocoded pdf rows", "source", p.Source(), "resolved", resolved, "skipped", skipped)
	})
}

func (p *PDFGeocoded) resolve(ctx context.Context, row tableRow) (models.RawObservation, bool) {
	if row.Address == "" {
		return models.RawObservation{}, false
	}
	pt, err := p.Geocoder.Resolve(ctx, row.Query())
	if err != nil || pt == nil {
		logger.Debug("address not resolved", "seq", row.Seq, "query", row.Query(), "error", err)
		return models.RawObservation{}, false
	}
	if !p.Parser.Bounds().Contains(pt.Latitude, pt.Longitude) {
		logger.Debug("geocoded point out of bounds", "seq", row.Seq, "lat", pt.Latitude, "lon", pt.Longitude)
		return models.RawObservation{}, false
	}

	f := models.Fields{Metadata: p.Defaults}
	f.RadarKind = row.Kind
	f.Direction = row.Direction
	f.Municipality = row.Municipality
	if f.Municipality == "" {
		f.Municipality = pt.City
	}
	f.Region = row.Region
	f.Highway = highwayOf(row.Address)
	if row.HasSpeed {
		f.SpeedLimitLight, f.SpeedLimitHeavy = row.Speed.Light, row.Speed.Heavy
	}
	return models.RawObservation{Latitude: pt.Latitude, Longitude: pt.Longitude, Source: p.Source(), Fields: f}, true
}

// highwayOf returns the designation when the address is a highway
// ("ROD. SP-070 KM 20" yields "SP-070").
func highwayOf(address string) string {
	if m := highwayDesignationRe.FindString(strings.ToUpper(address)); m != "" {
		return strings.ReplaceAll(m, " ", "-")
	}
	return ""
}

var highwayDesignationRe = regexp.MustCompile(`\b(?:BR|SP|MG|RJ|PR|SC|RS|GO|BA|PE|CE|ES|MT|MS|DF|PA|AM|TO|RO|AC|AP|RR|MA|PI|RN|PB|AL|SE)[- ]?\d{3}\b`)

// pdfLines extracts the text of every page grouped into visual rows.
func pdfLines(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			logger.Warn("skipping unreadable pdf page", "page", i, "error", err)
			continue
		}
		for _, row := range rows {
			var b strings.Builder
			for _, word := range row.Content {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(word.S)
			}
			lines = append(lines, b.String())
		}
	}
	return lines, nil
}
