// Package memory is an in-process store.Store used by tests and by the
// "memory" database driver for dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"radarsync/internal/keys"
	"radarsync/internal/models"
	"radarsync/internal/store"
)

type voteKey struct {
	user, record string
}

// Store keeps records, votes and the import state in maps guarded by one
// mutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]models.CanonicalRecord
	byKey   map[keys.Coordinate]string
	votes   map[voteKey]models.SpeedVote
	state   *models.ImportState
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: map[string]models.CanonicalRecord{},
		byKey:   map[keys.Coordinate]string{},
		votes:   map[voteKey]models.SpeedVote{},
		now:     time.Now,
	}
}

// WithClock replaces the time source used for UpdatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) FindByCoordinate(_ context.Context, key keys.Coordinate) (*models.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	r := s.records[id]
	return &r, nil
}

func (s *Store) FindByID(_ context.Context, id string) (*models.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) FindByCoordinates(_ context.Context, ks []keys.Coordinate) (map[keys.Coordinate]models.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[keys.Coordinate]models.CanonicalRecord)
	for _, k := range ks {
		if id, ok := s.byKey[k]; ok {
			out[k] = s.records[id]
		}
	}
	return out, nil
}

func (s *Store) CreateMany(_ context.Context, records []models.CanonicalRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[keys.Coordinate]bool, len(records))
	for _, r := range records {
		k := r.Key()
		if _, exists := s.byKey[k]; exists || seen[k] {
			return 0, fmt.Errorf("create %s: %w", k, store.ErrDuplicate)
		}
		if _, exists := s.records[r.ID]; exists {
			return 0, fmt.Errorf("create id %s: %w", r.ID, store.ErrDuplicate)
		}
		seen[k] = true
	}
	for _, r := range records {
		s.records[r.ID] = r
		s.byKey[r.Key()] = r.ID
	}
	return len(records), nil
}

func (s *Store) Update(_ context.Context, id string, p models.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, store.ErrNotFound)
	}
	p.Apply(&r)
	r.UpdatedAt = s.now()
	s.records[id] = r
	return nil
}

func (s *Store) UpdateMany(_ context.Context, f store.Filter, p models.Patch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for id, r := range s.records {
		if !f.Matches(r) {
			continue
		}
		p.Apply(&r)
		r.UpdatedAt = now
		s.records[id] = r
		n++
	}
	return n, nil
}

func (s *Store) Count(_ context.Context, f store.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if f.Matches(r) {
			n++
		}
	}
	return n, nil
}

// List returns the matching records ordered by coordinate key.
func (s *Store) List(_ context.Context, f store.Filter) ([]models.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CanonicalRecord
	for _, r := range s.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out, nil
}

func (s *Store) UpsertVote(_ context.Context, v models.SpeedVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[v.RecordID]; !ok {
		return fmt.Errorf("vote on %s: %w", v.RecordID, store.ErrNotFound)
	}
	s.votes[voteKey{v.UserID, v.RecordID}] = v
	return nil
}

// VotesFor returns each record's votes ordered by time then user.
func (s *Store) VotesFor(_ context.Context, recordIDs []string) (map[string][]models.SpeedVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		want[id] = true
	}
	out := make(map[string][]models.SpeedVote)
	for k, v := range s.votes {
		if want[k.record] {
			out[k.record] = append(out[k.record], v)
		}
	}
	for _, vs := range out {
		sort.Slice(vs, func(i, j int) bool {
			if !vs[i].VotedAt.Equal(vs[j].VotedAt) {
				return vs[i].VotedAt.Before(vs[j].VotedAt)
			}
			return vs[i].UserID < vs[j].UserID
		})
	}
	return out, nil
}

func (s *Store) ImportState(context.Context) (*models.ImportState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, store.ErrNotFound
	}
	st := *s.state
	return &st, nil
}

func (s *Store) SaveImportState(_ context.Context, st models.ImportState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &st
	return nil
}

func (s *Store) Close() error { return nil }
