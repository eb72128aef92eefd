package source

import (
	"strings"

	"radarsync/internal/columns"
	"radarsync/internal/models"
	"radarsync/internal/parse"
)

// RowMapper turns table rows into observations using an inferred column
// mapping. Defaults fill metadata the table does not carry, such as license
// and attribution.
type RowMapper struct {
	Source   models.Source
	Parser   *parse.Parser
	Mapping  columns.Mapping
	Defaults models.Metadata
}

// Map converts one row. It reports false when the row has no usable
// coordinate; every other field is optional.
func (m RowMapper) Map(row []string) (models.RawObservation, bool) {
	lat, lon, ok := m.Parser.Coordinate(
		m.Mapping.Value(row, columns.Latitude),
		m.Mapping.Value(row, columns.Longitude),
	)
	if !ok {
		return models.RawObservation{}, false
	}

	f := models.Fields{Metadata: m.Defaults}
	set := func(dst *string, field columns.Field) {
		if v := cell(m.Mapping.Value(row, field)); v != "" {
			*dst = v
		}
	}
	set(&f.Highway, columns.Highway)
	set(&f.Region, columns.Region)
	set(&f.Direction, columns.Direction)
	set(&f.Status, columns.Status)
	set(&f.Operator, columns.Operator)
	set(&f.RadarKind, columns.RadarKind)

	if raw := cell(m.Mapping.Value(row, columns.Municipality)); raw != "" {
		name, state := columns.SplitState(raw)
		f.Municipality = name
		if f.Region == "" && state != "" {
			f.Region = state
		}
	}
	if d, ok := parse.Distance(m.Mapping.Value(row, columns.Distance)); ok {
		f.DistanceAlongRoute = &d
	}
	if s, ok := parse.ParseSpeed(m.Mapping.Value(row, columns.Speed)); ok {
		f.SpeedLimitLight = s.Light
		f.SpeedLimitHeavy = s.Heavy
	}
	if m.Mapping.Has(columns.SpeedHeavy) {
		if s, ok := parse.ParseSpeed(m.Mapping.Value(row, columns.SpeedHeavy)); ok {
			f.SpeedLimitHeavy = s.Light
		}
	}

	return models.RawObservation{Latitude: lat, Longitude: lon, Source: m.Source, Fields: f}, true
}

// table infers the layout of header+rows and maps every row. header may be
// nil for headerless tables.
func table(src models.Source, p *parse.Parser, defaults models.Metadata, header []string, rows [][]string) []models.RawObservation {
	mapping := columns.Infer(header, rows, p.Bounds())
	if !mapping.Has(columns.Latitude) || !mapping.Has(columns.Longitude) {
		logger.Warn("no coordinate columns found", "source", src, "rows", len(rows))
		return nil
	}
	mapper := RowMapper{Source: src, Parser: p, Mapping: mapping, Defaults: defaults}

	out := make([]models.RawObservation, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		o, ok := mapper.Map(row)
		if !ok {
			skipped++
			continue
		}
		out = append(out, o)
	}
	logger.Info("mapped table", "source", src, "rows", len(rows), "observations", len(out), "skipped", skipped)
	return out
}

func cell(s string) string {
	v, ok := parse.Clean(s)
	if !ok {
		return ""
	}
	return strings.Join(strings.Fields(v), " ")
}
