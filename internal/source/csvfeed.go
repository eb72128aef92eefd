package source

import (
	"context"

	"radarsync/internal/columns"
	"radarsync/internal/models"
	"radarsync/internal/parse"
)

// CSVFeed reads a delimited text publication with or without a header row.
type CSVFeed struct {
	Fetcher  *Fetcher
	Location Location
	Parser   *parse.Parser
	Defaults models.Metadata
}

func (c *CSVFeed) Source() models.Source { return models.SourceOfficialB }

func (c *CSVFeed) Capabilities() Capability { return c.Fetcher.capabilitiesOf(c.Location) }

func (c *CSVFeed) Fetch(ctx context.Context) <-chan models.RawObservation {
	return emit(ctx, func(yield func(models.RawObservation) bool) {
		data := fetchOrEmpty(ctx, c.Fetcher, c.Source(), c.Location)
		if data == nil {
			return
		}
		for _, o := range c.Decode(data) {
			if !yield(o) {
				return
			}
		}
	})
}

// Decode parses the delimited text. The delimiter is taken from the first
// line and the header is kept only when it does not look like data.
func (c *CSVFeed) Decode(data []byte) []models.RawObservation {
	text := decodeText(data)
	delim := detectDelimiter(text)
	rows, err := readDelimited(text, delim)
	if err != nil {
		logger.Warn("delimited text ended early", "source", c.Source(), "error", err, "rows", len(rows))
	}
	if len(rows) == 0 {
		return nil
	}

	var header []string
	if columns.LooksLikeHeader(rows[0], c.Parser.Bounds()) {
		header, rows = rows[0], rows[1:]
	}
	logger.Debug("delimited text layout", "source", c.Source(), "delimiter", string(delim), "header", header != nil)
	return table(c.Source(), c.Parser, c.Defaults, header, rows)
}
