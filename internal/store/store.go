// Package store defines the persisted-store contract the reconciliation engine
// writes through. Implementations live in the memory, sqlite and postgres
// subpackages.
//
// Every implementation must enforce uniqueness of the coordinate identity key.
// The engine checks for existence before it creates, and without the unique
// constraint two concurrent runs observing the same new coordinate could both
// create it.
package store

import (
	"context"
	"errors"

	"radarsync/internal/keys"
	"radarsync/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a create collides with an existing
	// coordinate key.
	ErrDuplicate = errors.New("store: duplicate coordinate key")
)

// Filter selects records for Count, List and UpdateMany. Zero members are
// ignored; set members are combined with AND.
type Filter struct {
	Source models.Source
	Active *bool
	IDs    []string
	Keys   []keys.Coordinate
}

// Matches reports whether r satisfies f. Stores that filter in memory use it;
// SQL stores translate the same rules into a WHERE clause.
func (f Filter) Matches(r models.CanonicalRecord) bool {
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Active != nil && r.Active != *f.Active {
		return false
	}
	if f.IDs != nil && !containsString(f.IDs, r.ID) {
		return false
	}
	if f.Keys != nil {
		k := r.Key()
		found := false
		for _, want := range f.Keys {
			if want == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Bool returns a pointer to b, for Filter.Active and Patch.Active.
func Bool(b bool) *bool { return &b }

// Records is the canonical-record half of the contract.
type Records interface {
	// FindByCoordinate returns the record at key or ErrNotFound.
	FindByCoordinate(ctx context.Context, key keys.Coordinate) (*models.CanonicalRecord, error)
	// FindByCoordinates returns the records that exist among ks, in one query.
	FindByCoordinates(ctx context.Context, ks []keys.Coordinate) (map[keys.Coordinate]models.CanonicalRecord, error)
	// CreateMany inserts all records or none of them. It returns the number
	// inserted; a count different from len(records) is a partial failure.
	CreateMany(ctx context.Context, records []models.CanonicalRecord) (int, error)
	// Update applies p to the record with the given id and bumps UpdatedAt.
	Update(ctx context.Context, id string, p models.Patch) error
	// UpdateMany applies p to every record matching f and returns how many
	// rows changed.
	UpdateMany(ctx context.Context, f Filter, p models.Patch) (int, error)
	Count(ctx context.Context, f Filter) (int, error)
	List(ctx context.Context, f Filter) ([]models.CanonicalRecord, error)
	FindByID(ctx context.Context, id string) (*models.CanonicalRecord, error)
}

// Votes stores crowd speed votes, one per user and record.
type Votes interface {
	// UpsertVote stores v, replacing the user's earlier vote on the record.
	UpsertVote(ctx context.Context, v models.SpeedVote) error
	// VotesFor returns the votes of each record id that has any.
	VotesFor(ctx context.Context, recordIDs []string) (map[string][]models.SpeedVote, error)
}

// Imports keeps the snapshot of the latest user CSV import.
type Imports interface {
	// ImportState returns the last saved snapshot or ErrNotFound.
	ImportState(ctx context.Context) (*models.ImportState, error)
	SaveImportState(ctx context.Context, s models.ImportState) error
}

// Store is everything the engine needs from persistence.
type Store interface {
	Records
	Votes
	Imports
	Close() error
}
