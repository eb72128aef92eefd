package models

import "time"

// Reason codes reported instead of errors when a run had nothing to do.
const (
	ReasonUnchangedCSV   = "unchanged_csv"
	ReasonEmptyCSV       = "empty_csv"
	ReasonNoValidRows    = "no_valid_rows"
	ReasonNoObservations = "no_observations"
)

// TierCounts records how many records each write tier handled.
type TierCounts struct {
	Bulk       int `json:"bulk"`
	SubBatch   int `json:"subBatch"`
	Sequential int `json:"sequential"`
}

// Summary is the outcome of one reconciliation run for a single source.
type Summary struct {
	Source      Source     `json:"source"`
	Total       int        `json:"total"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Unchanged   int        `json:"unchanged"`
	Deactivated int        `json:"deactivated"`
	Dropped     int        `json:"dropped"`
	Tiers       TierCounts `json:"tiers"`
	Reason      string     `json:"reason,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  time.Time  `json:"finishedAt"`
}

// Add folds another summary's counters into s.
func (s *Summary) Add(o Summary) {
	s.Total += o.Total
	s.Created += o.Created
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
	s.Deactivated += o.Deactivated
	s.Dropped += o.Dropped
	s.Tiers.Bulk += o.Tiers.Bulk
	s.Tiers.SubBatch += o.Tiers.SubBatch
	s.Tiers.Sequential += o.Tiers.Sequential
}

// ImportState is the snapshot of the most recent successful user CSV import.
type ImportState struct {
	ContentHash string    `json:"contentHash"`
	ImportedAt  time.Time `json:"importedAt"`
	FileName    string    `json:"fileName"`
	TotalRows   int       `json:"totalRows"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Deactivated int       `json:"deactivated"`
}

// ImportResult is returned by a user CSV import. When Imported is false the
// Reason explains why nothing was written.
type ImportResult struct {
	Imported bool         `json:"imported"`
	Reason   string       `json:"reason,omitempty"`
	Summary  Summary      `json:"summary"`
	State    *ImportState `json:"state,omitempty"`
}
