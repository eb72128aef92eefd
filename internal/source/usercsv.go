package source

import (
	"context"
	"strings"

	"radarsync/internal/models"
	"radarsync/internal/parse"
)

// UserCSVStats counts what happened to the lines of an upload.
type UserCSVStats struct {
	Lines   int `json:"lines"`
	Valid   int `json:"valid"`
	Skipped int `json:"skipped"`
}

// ParseUserCSV reads the line format "longitude,latitude,description" with an
// optional "@speed" suffix on the description. The suffix overrides any speed
// found in the description text. Lines without a usable coordinate, such as
// a header, are skipped.
func ParseUserCSV(content []byte, p *parse.Parser) ([]models.RawObservation, UserCSVStats) {
	var stats UserCSVStats
	rows, err := readDelimited(decodeText(content), ',')
	if err != nil {
		logger.Warn("upload ended early", "error", err, "rows", len(rows))
	}

	out := make([]models.RawObservation, 0, len(rows))
	for i, row := range rows {
		stats.Lines++
		o, ok := userRow(row, p)
		if !ok {
			stats.Skipped++
			if i > 0 {
				logger.Debug("skipping upload line", "line", i+1, "fields", len(row))
			}
			continue
		}
		stats.Valid++
		out = append(out, o)
	}
	logger.Info("parsed upload", "lines", stats.Lines, "valid", stats.Valid, "skipped", stats.Skipped)
	return out, stats
}

func userRow(row []string, p *parse.Parser) (models.RawObservation, bool) {
	if len(row) < 2 {
		return models.RawObservation{}, false
	}
	lat, lon, ok := p.Coordinate(row[1], row[0])
	if !ok {
		return models.RawObservation{}, false
	}

	desc := strings.Join(row[2:], ",")
	override := ""
	if i := strings.LastIndex(desc, "@"); i >= 0 {
		desc, override = desc[:i], desc[i+1:]
	}
	desc = cell(desc)

	var f models.Fields
	f.RadarKind = desc
	speed, found := parse.ParseSpeed(override)
	if !found {
		speed, found = parse.FindSpeed(desc)
	}
	if found {
		f.SpeedLimitLight, f.SpeedLimitHeavy = speed.Light, speed.Heavy
	}
	return models.RawObservation{Latitude: lat, Longitude: lon, Source: models.SourceUserUpload, Fields: f}, true
}

// UserCSV is the adapter form of an upload, for running a local file through
// the same pipeline as the official sources.
type UserCSV struct {
	Fetcher  *Fetcher
	Location Location
	Parser   *parse.Parser
}

func (u *UserCSV) Source() models.Source { return models.SourceUserUpload }

func (u *UserCSV) Capabilities() Capability { return u.Fetcher.capabilitiesOf(u.Location) }

func (u *UserCSV) Fetch(ctx context.Context) <-chan models.RawObservation {
	return emit(ctx, func(yield func(models.RawObservation) bool) {
		data := fetchOrEmpty(ctx, u.Fetcher, u.Source(), u.Location)
		if data == nil {
			return
		}
		obs, _ := ParseUserCSV(data, u.Parser)
		for _, o := range obs {
			if !yield(o) {
				return
			}
		}
	})
}
