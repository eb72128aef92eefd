package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radarsync/internal/keys"
	"radarsync/internal/models"
	"radarsync/internal/store"
)

var epoch = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "radarsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.WithClock(func() time.Time { return epoch.Add(time.Hour) })
}

func sampleRecord(id string, lat, lon float64) models.CanonicalRecord {
	light, heavy := 80, 60
	dist := 123.5
	return models.CanonicalRecord{
		ID:        id,
		Latitude:  lat,
		Longitude: lon,
		Source:    models.SourceOfficialA,
		Metadata: models.Metadata{
			Highway:            "BR-116",
			Municipality:       "Curitiba",
			DistanceAlongRoute: &dist,
		},
		OriginalSpeedLight: &light,
		OriginalSpeedHeavy: &heavy,
		SpeedLight:         &light,
		SpeedHeavy:         &heavy,
		ConfirmCount:       10,
		CreatedAt:          epoch,
		UpdatedAt:          epoch,
		Active:             true,
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	want := sampleRecord("a", -25.4284, -49.2733)
	n, err := s.CreateMany(ctx, []models.CanonicalRecord{want})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.FindByCoordinate(ctx, keys.For(-25.4284, -49.2733))
	require.NoError(t, err)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateManyRollsBackOnDuplicate(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	_, err := s.CreateMany(ctx, []models.CanonicalRecord{sampleRecord("a", -25.4, -49.2)})
	require.NoError(t, err)

	n, err := s.CreateMany(ctx, []models.CanonicalRecord{
		sampleRecord("b", -23.5, -46.6),
		sampleRecord("c", -25.4, -49.2),
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Zero(t, n)

	count, err := s.Count(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateAndFilters(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	a := sampleRecord("a", -25.4, -49.2)
	b := sampleRecord("b", -23.5, -46.6)
	b.Source = models.SourceUserUpload
	_, err := s.CreateMany(ctx, []models.CanonicalRecord{a, b})
	require.NoError(t, err)

	seventy := 70
	confirms := 11
	region := "PR"
	require.NoError(t, s.Update(ctx, "a", models.Patch{SpeedLight: &seventy, ConfirmCount: &confirms, Region: &region}))

	got, err := s.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 70, *got.SpeedLight)
	assert.Equal(t, 80, *got.OriginalSpeedLight)
	assert.Equal(t, 11, got.ConfirmCount)
	assert.Equal(t, "PR", got.Region)
	assert.Equal(t, epoch.Add(time.Hour), got.UpdatedAt)

	err = s.Update(ctx, "missing", models.Patch{SpeedLight: &seventy})
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.UpdateMany(ctx, store.Filter{Source: models.SourceUserUpload, IDs: []string{"a", "b"}},
		models.Patch{Active: store.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inactive, err := s.List(ctx, store.Filter{Active: store.Bool(false)})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "b", inactive[0].ID)

	found, err := s.FindByCoordinates(ctx, []keys.Coordinate{keys.For(-25.4, -49.2), keys.For(0, 0)})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestVotesAndImportState(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	_, err := s.CreateMany(ctx, []models.CanonicalRecord{sampleRecord("a", -25.4, -49.2)})
	require.NoError(t, err)

	sixty, fifty := 60, 50
	require.NoError(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u1", RecordID: "a", SpeedLight: &sixty, VotedAt: epoch}))
	require.NoError(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u1", RecordID: "a", SpeedLight: &fifty, VotedAt: epoch.Add(time.Minute)}))
	require.NoError(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u2", RecordID: "a", SpeedHeavy: &fifty, VotedAt: epoch}))

	votes, err := s.VotesFor(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, votes["a"], 2)
	assert.Equal(t, "u2", votes["a"][0].UserID)
	assert.Nil(t, votes["a"][0].SpeedLight)
	assert.Equal(t, 50, *votes["a"][1].SpeedLight)

	assert.ErrorIs(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u1", RecordID: "b", VotedAt: epoch}), store.ErrNotFound)

	_, err = s.ImportState(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
	want := models.ImportState{ContentHash: "h1", ImportedAt: epoch, FileName: "radars.csv", TotalRows: 2, Created: 2}
	require.NoError(t, s.SaveImportState(ctx, want))
	want.ContentHash = "h2"
	require.NoError(t, s.SaveImportState(ctx, want))
	got, err := s.ImportState(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestMigrateVersion(t *testing.T) {
	s := openTest(t)
	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)
	require.NoError(t, s.MigrateUp())
}

func TestVotesOrderedByTime(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	_, err := s.CreateMany(ctx, []models.CanonicalRecord{sampleRecord("a", -25.4, -49.2)})
	require.NoError(t, err)

	sixty := 60
	require.NoError(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u1", RecordID: "a", SpeedLight: &sixty, VotedAt: epoch.Add(500 * time.Millisecond)}))
	require.NoError(t, s.UpsertVote(ctx, models.SpeedVote{UserID: "u2", RecordID: "a", SpeedLight: &sixty, VotedAt: epoch}))

	votes, err := s.VotesFor(ctx, []string{"a"})
	require.NoError(t, err)
	require.Len(t, votes["a"], 2)
	assert.Equal(t, "u2", votes["a"][0].UserID)
	assert.Equal(t, epoch, votes["a"][0].VotedAt)
	assert.Equal(t, epoch.Add(500*time.Millisecond), votes["a"][1].VotedAt)
}
