package reconcile

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radarsync/internal/keys"
	"radarsync/internal/models"
	"radarsync/internal/store"
	"radarsync/internal/store/memory"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 10
	cfg.SubBatchSize = 2
	cfg.Parallelism = 2
	return cfg
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.SubBatchSize = 0
	assert.Error(t, cfg.Validate())

	_, err := NewEngine(memory.New(), cfg)
	assert.Error(t, err)
}

func TestReconcileEmpty(t *testing.T) {
	e := testEngine(t, memory.New(), DefaultConfig())
	sum := e.Reconcile(context.Background(), models.SourceOfficialA, nil)
	assert.Equal(t, models.ReasonNoObservations, sum.Reason)
	assert.Zero(t, sum.Total)
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := testEngine(t, s, smallConfig())
	obs := grid(models.SourceOfficialA, 5, 60)

	first := e.Reconcile(ctx, models.SourceOfficialA, obs)
	assert.Equal(t, 5, first.Total)
	assert.Equal(t, 5, first.Created)
	assert.Equal(t, 5, first.Tiers.Bulk)

	before, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)

	second := e.Reconcile(ctx, models.SourceOfficialA, obs)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 5, second.Unchanged)

	after, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("second run changed records (-before +after):\n%s", diff)
	}
	for _, r := range after {
		assert.Equal(t, 10, r.ConfirmCount)
		assert.True(t, r.Active)
	}
}

func TestReconcileDuplicatesInOneRun(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := testEngine(t, s, smallConfig())

	poor := observation(models.SourceOfficialB, -23.5, -46.6, 0)
	rich := observation(models.SourceOfficialB, -23.500000001, -46.6, 60)
	rich.Fields.Highway = "SP-280"

	sum := e.Reconcile(ctx, models.SourceOfficialB, []models.RawObservation{poor, rich})
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Created)

	rec, err := s.FindByCoordinate(ctx, keys.For(-23.5, -46.6))
	require.NoError(t, err)
	assert.Equal(t, "SP-280", rec.Highway)
}

func TestReconcileUpdatesAndConfirms(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := testEngine(t, s, smallConfig())
	e.Reconcile(ctx, models.SourceOfficialA, grid(models.SourceOfficialA, 2, 60))

	changed := grid(models.SourceOfficialC, 2, 80)
	sum := e.Reconcile(ctx, models.SourceOfficialC, changed)
	assert.Equal(t, 2, sum.Updated)

	rec, err := s.FindByCoordinate(ctx, changed[0].Key())
	require.NoError(t, err)
	assert.Equal(t, 80, *rec.OriginalSpeedLight)
	assert.Equal(t, 80, *rec.SpeedLight)
	assert.Equal(t, 11, rec.ConfirmCount)
	assert.Equal(t, models.SourceOfficialA, rec.Source, "the creating source is kept")
	require.NotNil(t, rec.LastConfirmedAt)
	assert.Equal(t, fixedNow, *rec.LastConfirmedAt)
}

func TestReconcileKeepsCrowdValue(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := testEngine(t, s, smallConfig())
	obs := grid(models.SourceOfficialA, 1, 60)
	e.Reconcile(ctx, models.SourceOfficialA, obs)

	rec, err := s.FindByCoordinate(ctx, obs[0].Key())
	require.NoError(t, err)

	v := NewVoter(s, 10)
	for i := range 10 {
		_, err := v.Cast(ctx, models.SpeedVote{
			UserID:     "user-" + string(rune('a'+i)),
			RecordID:   rec.ID,
			SpeedLight: intPtr(50),
		})
		require.NoError(t, err)
	}

	sum := e.Reconcile(ctx, models.SourceOfficialA, grid(models.SourceOfficialA, 1, 80))
	assert.Equal(t, 1, sum.Updated)

	rec, err = s.FindByCoordinate(ctx, obs[0].Key())
	require.NoError(t, err)
	assert.Equal(t, 80, *rec.OriginalSpeedLight)
	assert.Equal(t, 50, *rec.SpeedLight)
}

func TestReconcileUserSourceStartsUnconfirmed(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := testEngine(t, s, smallConfig())
	obs := grid(models.SourceUserUpload, 1, 40)
	e.Reconcile(ctx, models.SourceUserUpload, obs)

	rec, err := s.FindByCoordinate(ctx, obs[0].Key())
	require.NoError(t, err)
	assert.Zero(t, rec.ConfirmCount)
	assert.Equal(t, models.SourceUserUpload, rec.Source)
}

func TestReconcileWriteTiers(t *testing.T) {
	tests := []struct {
		name      string
		store     *faultyStore
		wantTiers models.TierCounts
		created   int
		dropped   int
	}{
		{
			name:      "bulk",
			store:     &faultyStore{},
			wantTiers: models.TierCounts{Bulk: 5},
			created:   5,
		},
		{
			name:      "sub-batches",
			store:     &faultyStore{maxCreate: 2},
			wantTiers: models.TierCounts{SubBatch: 5},
			created:   5,
		},
		{
			name:      "sequential",
			store:     &faultyStore{maxCreate: 1},
			wantTiers: models.TierCounts{SubBatch: 1, Sequential: 4},
			created:   5,
		},
		{
			name:      "existence check fails",
			store:     &faultyStore{failFind: true},
			wantTiers: models.TierCounts{Sequential: 5},
			created:   5,
		},
		{
			name:    "every tier fails",
			store:   &faultyStore{failCreate: true},
			dropped: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tt.store.Store = memory.New()
			e := testEngine(t, tt.store, smallConfig())

			sum := e.Reconcile(ctx, models.SourceOfficialB, grid(models.SourceOfficialB, 5, 60))
			assert.Equal(t, 5, sum.Total)
			assert.Equal(t, tt.created, sum.Created)
			assert.Equal(t, tt.dropped, sum.Dropped)
			assert.Equal(t, tt.wantTiers, sum.Tiers)

			n, err := tt.store.Count(ctx, store.Filter{})
			require.NoError(t, err)
			assert.Equal(t, tt.created, n)
		})
	}
}

func TestReconcileSkipsUpdatesWithoutVotes(t *testing.T) {
	ctx := context.Background()
	s := &faultyStore{Store: memory.New()}
	e := testEngine(t, s, smallConfig())
	e.Reconcile(ctx, models.SourceOfficialA, grid(models.SourceOfficialA, 3, 60))

	s.failVotes = true
	sum := e.Reconcile(ctx, models.SourceOfficialA, grid(models.SourceOfficialA, 3, 80))
	assert.Equal(t, 3, sum.Dropped)
	assert.Zero(t, sum.Updated)

	rec, err := s.FindByCoordinate(ctx, grid(models.SourceOfficialA, 1, 0)[0].Key())
	require.NoError(t, err)
	assert.Equal(t, 60, *rec.OriginalSpeedLight)
}
