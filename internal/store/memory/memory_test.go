package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radarsync/internal/keys"
	"radarsync/internal/models"
	"radarsync/internal/store"
)

func record(id string, lat, lon float64, src models.Source) models.CanonicalRecord {
	return models.CanonicalRecord{ID: id, Latitude: lat, Longitude: lon, Source: src, Active: true}
}

func TestCreateManyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()

	n, err := s.CreateMany(ctx, []models.CanonicalRecord{record("a", -23.5, -46.6, models.SourceOfficialA)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.CreateMany(ctx, []models.CanonicalRecord{
		record("b", -22.9, -43.2, models.SourceOfficialA),
		record("c", -23.5, -46.6, models.SourceOfficialB),
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Zero(t, n)

	_, err = s.FindByCoordinate(ctx, keys.For(-22.9, -43.2))
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing from the failed batch is kept")
}

func TestUpdateManyAndCount(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return fixed })

	_, err := s.CreateMany(ctx, []models.CanonicalRecord{
		record("a", -23.5, -46.6, models.SourceUserUpload),
		record("b", -22.9, -43.2, models.SourceUserUpload),
		record("c", -20.0, -40.0, models.SourceOfficialA),
	})
	require.NoError(t, err)

	n, err := s.UpdateMany(ctx, store.Filter{Source: models.SourceUserUpload, IDs: []string{"b", "c"}},
		models.Patch{Active: store.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := s.Count(ctx, store.Filter{Active: store.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	b, err := s.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.False(t, b.Active)
	assert.Equal(t, fixed, b.UpdatedAt)
}

func TestFindByCoordinates(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateMany(ctx, []models.CanonicalRecord{record("a", -23.5, -46.6, models.SourceOfficialA)})
	require.NoError(t, err)

	got, err := s.FindByCoordinates(ctx, []keys.Coordinate{keys.For(-23.5, -46.6), keys.For(1, 1)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[keys.For(-23.5, -46.6)].ID)
}

func TestVotesUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateMany(ctx, []models.CanonicalRecord{record("a", -23.5, -46.6, models.SourceOfficialA)})
	require.NoError(t, err)

	sixty, seventy := 60, 70
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u1", RecordID: "a", SpeedLight: &sixty, VotedAt: t0}))
	require.NoError(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u1", RecordID: "a", SpeedLight: &seventy, VotedAt: t0.Add(time.Hour)}))

	votes, err := s.VotesFor(ctx, []string{"a"})
	require.NoError(t, err)
	require.Len(t, votes["a"], 1)
	assert.Equal(t, 70, *votes["a"][0].SpeedLight)

	err = s.UpsertVote(ctx, models.SpeedVote{UserID: "u1", RecordID: "missing", SpeedLight: &sixty})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestImportState(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.ImportState(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveImportState(ctx, models.ImportState{ContentHash: "abc", TotalRows: 3}))
	st, err := s.ImportState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", st.ContentHash)
}
