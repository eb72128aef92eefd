package ingest

import (
	"radarsync/internal/config"
	"radarsync/internal/geocode"
	"radarsync/internal/models"
	"radarsync/internal/parse"
	"radarsync/internal/source"
)

// Adapters builds an adapter for every configured official source. The
// geocoded source is left out when geo is nil.
func Adapters(sc config.Sources, fetcher *source.Fetcher, parser *parse.Parser, geo geocode.Geocoder) []source.Adapter {
	var out []source.Adapter
	if f := sc.OfficialA; f.Enabled() {
		out = append(out, &source.JSONFeed{
			Fetcher: fetcher, Location: location(f), Parser: parser,
			ArrayField: sc.JSONArrayField, Defaults: defaults(f),
		})
	}
	if f := sc.OfficialB; f.Enabled() {
		out = append(out, &source.CSVFeed{Fetcher: fetcher, Location: location(f), Parser: parser, Defaults: defaults(f)})
	}
	if f := sc.OfficialC; f.Enabled() {
		out = append(out, &source.Workbook{Fetcher: fetcher, Location: location(f), Parser: parser, Defaults: defaults(f)})
	}
	if f := sc.OfficialD; f.Enabled() {
		if geo == nil {
			logger.Warn("no geocoder configured, skipping source", "source", models.SourceOfficialD)
		} else {
			out = append(out, &source.PDFGeocoded{
				Fetcher: fetcher, Location: location(f), Parser: parser,
				Geocoder: geo, Defaults: defaults(f),
			})
		}
	}
	return out
}

func location(f config.Feed) source.Location {
	return source.Location{URL: f.URL, Path: f.Path}
}

func defaults(f config.Feed) models.Metadata {
	return models.Metadata{License: f.License, Attribution: f.Attribution}
}
