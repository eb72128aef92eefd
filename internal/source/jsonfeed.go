package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"radarsync/internal/models"
	"radarsync/internal/parse"
)

// JSONFeed reads a JSON object holding an array of flat records whose
// numbers are often strings with a decimal comma.
type JSONFeed struct {
	Fetcher  *Fetcher
	Location Location
	Parser   *parse.Parser
	// ArrayField names the member holding the records. When empty the first
	// array of objects is used.
	ArrayField string
	Defaults   models.Metadata
}

func (j *JSONFeed) Source() models.Source { return models.SourceOfficialA }

func (j *JSONFeed) Capabilities() Capability { return j.Fetcher.capabilitiesOf(j.Location) }

func (j *JSONFeed) Fetch(ctx context.Context) <-chan models.RawObservation {
	return emit(ctx, func(yield func(models.RawObservation) bool) {
		data := fetchOrEmpty(ctx, j.Fetcher, j.Source(), j.Location)
		if data == nil {
			return
		}
		obs, err := j.Decode(data)
		if err != nil {
			logger.Error("could not decode feed", "source", j.Source(), "error", err)
			return
		}
		for _, o := range obs {
			if !yield(o) {
				return
			}
		}
	})
}

// Decode turns the feed document into observations.
func (j *JSONFeed) Decode(data []byte) ([]models.RawObservation, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode feed document: %w", err)
	}
	records, err := j.records(data, doc)
	if err != nil {
		return nil, err
	}

	var (
		header []string
		index  = map[string]int{}
		rows   = make([][]string, 0, len(records))
	)
	for _, raw := range records {
		keys, values, err := flatObject(raw)
		if err != nil {
			logger.Debug("skipping malformed record", "source", j.Source(), "error", err)
			continue
		}
		row := make([]string, len(header))
		for i, k := range keys {
			col, ok := index[k]
			if !ok {
				col = len(header)
				index[k] = col
				header = append(header, k)
				row = append(row, "")
			}
			row[col] = values[i]
		}
		rows = append(rows, row)
	}
	return table(j.Source(), j.Parser, j.Defaults, header, rows), nil
}

func (j *JSONFeed) records(data []byte, doc map[string]json.RawMessage) ([]json.RawMessage, error) {
	if j.ArrayField != "" {
		raw, ok := doc[j.ArrayField]
		if !ok {
			return nil, fmt.Errorf("feed has no %q member", j.ArrayField)
		}
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("member %q is not an array: %w", j.ArrayField, err)
		}
		return records, nil
	}
	// Walk members in document order so the choice is deterministic.
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)
		var records []json.RawMessage
		if err := json.Unmarshal(doc[name], &records); err == nil && len(records) > 0 && bytes.HasPrefix(bytes.TrimSpace(records[0]), []byte("{")) {
			logger.Debug("using feed member", "member", name, "records", len(records))
			return records, nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("feed has no array of records")
}

// flatObject returns the members of a JSON object in document order with
// scalar values rendered as text. Nested values are kept as raw JSON.
func flatObject(raw json.RawMessage) ([]string, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("record is not an object")
	}
	var keys, values []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil && err != io.EOF {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, scalar(v))
	}
	return keys, values, nil
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
