package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"radarsync/internal/columns"
	"radarsync/internal/models"
	"radarsync/internal/parse"
)

// headerSearchRows is how far down a sheet the header row may sit; workbooks
// often open with a title block.
const headerSearchRows = 10

// Workbook reads every sheet of a spreadsheet publication, inferring each
// sheet's layout from its header row.
type Workbook struct {
	Fetcher  *Fetcher
	Location Location
	Parser   *parse.Parser
	Defaults models.Metadata
}

func (w *Workbook) Source() models.Source { return models.SourceOfficialC }

func (w *Workbook) Capabilities() Capability { return w.Fetcher.capabilitiesOf(w.Location) }

func (w *Workbook) Fetch(ctx context.Context) <-chan models.RawObservation {
	return emit(ctx, func(yield func(models.RawObservation) bool) {
		data := fetchOrEmpty(ctx, w.Fetcher, w.Source(), w.Location)
		if data == nil {
			return
		}
		obs, err := w.Decode(data)
		if err != nil {
			logger.Error("could not read workbook", "source", w.Source(), "error", err)
			return
		}
		for _, o := range obs {
			if !yield(o) {
				return
			}
		}
	})
}

// Decode reads all sheets. A sheet that cannot be read is skipped.
func (w *Workbook) Decode(data []byte) ([]models.RawObservation, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []models.RawObservation
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("skipping unreadable sheet", "source", w.Source(), "sheet", sheet, "error", err)
			continue
		}
		header, body := splitHeader(rows, w.Parser.Bounds())
		if len(body) == 0 {
			logger.Debug("empty sheet", "source", w.Source(), "sheet", sheet)
			continue
		}
		logger.Info("reading sheet", "source", w.Source(), "sheet", sheet, "rows", len(body), "header", header != nil)
		out = append(out, table(w.Source(), w.Parser, w.Defaults, header, body)...)
	}
	return out, nil
}

// splitHeader finds the header row among the first rows of a sheet and
// returns it with the rows below it. Title rows above the header are dropped.
// Without a header every non-blank row is data.
func splitHeader(rows [][]string, bounds parse.Bounds) ([]string, [][]string) {
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		if filled(rows[i]) < 2 {
			continue
		}
		if columns.LooksLikeHeader(rows[i], bounds) {
			return rows[i], nonBlank(rows[i+1:])
		}
		break
	}
	return nil, nonBlank(rows)
}

func filled(row []string) int {
	n := 0
	for _, c := range row {
		if _, ok := parse.Clean(c); ok {
			n++
		}
	}
	return n
}

func nonBlank(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		if !blank(r) {
			out = append(out, r)
		}
	}
	return out
}
