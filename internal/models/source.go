package models

// Source identifies the upstream provider an observation came from.
type Source string

const (
	// SourceOfficialA is the government JSON open-data feed.
	SourceOfficialA Source = "official-a"
	// SourceOfficialB is the delimited-text (CSV) open-data feed.
	SourceOfficialB Source = "official-b"
	// SourceOfficialC is the spreadsheet workbook publication.
	SourceOfficialC Source = "official-c"
	// SourceOfficialD is the PDF table that needs address geocoding.
	SourceOfficialD Source = "official-d"
	// SourceUserUpload is a user-supplied CSV snapshot.
	SourceUserUpload Source = "user-upload"
)

var sources = []Source{
	SourceOfficialA, SourceOfficialB, SourceOfficialC, SourceOfficialD, SourceUserUpload,
}

// Sources returns every known source in a stable order.
func Sources() []Source {
	out := make([]Source, len(sources))
	copy(out, sources)
	return out
}

// Official reports whether the source is a curated government publication.
func (s Source) Official() bool {
	switch s {
	case SourceOfficialA, SourceOfficialB, SourceOfficialC, SourceOfficialD:
		return true
	}
	return false
}

func (s Source) Valid() bool {
	return s.Official() || s == SourceUserUpload
}

func (s Source) String() string { return string(s) }
