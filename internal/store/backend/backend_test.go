package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, "memory", "")
	require.NoError(t, err)
	_, _, err = SchemaVersion(mem)
	assert.ErrorIs(t, err, ErrNoSchema)
	require.NoError(t, mem.Close())

	lite, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "radars.db"))
	require.NoError(t, err)
	defer lite.Close()
	v, dirty, err := SchemaVersion(lite)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	_, err = Open(ctx, "mysql", "")
	assert.Error(t, err)
}
