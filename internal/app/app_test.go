package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radarsync/internal/config"
	"radarsync/internal/models"
	"radarsync/internal/store"
)

func intPtr(v int) *int { return &v }

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("RADARSYNC_DATABASE_DRIVER", "memory")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewWithoutObjectStore(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Objects)
	assert.NotNil(t, a.Fetcher())

	g1, err := a.Geocoder()
	require.NoError(t, err)
	g2, err := a.Geocoder()
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	res, err := a.Importer().Import(ctx, []byte("-46.6333,-23.5505,Radar fixo@60\n"), "radares.csv", false)
	require.NoError(t, err)
	assert.True(t, res.Imported)

	st, err := a.Importer().Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActiveUpload)

	list, err := a.Store.List(ctx, store.Filter{Source: models.SourceUserUpload})
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = a.Voter().Cast(ctx, models.SpeedVote{UserID: "u1", RecordID: list[0].ID, SpeedLight: intPtr(50)})
	require.NoError(t, err)
}
