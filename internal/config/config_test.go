package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 500, cfg.Reconcile.BatchSize)
	assert.Equal(t, 10, cfg.Reconcile.PromotionThreshold)
	assert.Equal(t, time.Second, cfg.Geocoder.Interval)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.MinIO.Enabled())

	b, err := cfg.ParseBounds()
	require.NoError(t, err)
	assert.True(t, b.Contains(-23.55, -46.63))
	assert.False(t, b.Contains(40.7, -74.0))
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RADARSYNC_RECONCILE_BATCHSIZE", "100")
	t.Setenv("RADARSYNC_GEOCODER_INTERVAL", "2s")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "access")
	t.Setenv("RADARSYNC_MINIO_SECRETKEY", "secret")
	t.Setenv("KAFKA_TOPIC", "uploads")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Reconcile.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Geocoder.Interval)
	assert.Equal(t, "localhost:9000", cfg.MinIO.Endpoint)
	assert.Equal(t, "access", cfg.MinIO.AccessKey)
	assert.Equal(t, "secret", cfg.MinIO.SecretKey)
	assert.Equal(t, "uploads", cfg.Kafka.UploadTopic)
	assert.Equal(t, 100, cfg.EngineConfig().BatchSize)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
sources:
  officiala:
    url: https://example.org/radares.json
    license: CC-BY-4.0
bounds:
  minlat: -30
  maxlat: -20
  minlon: -55
  maxlon: -40
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.True(t, cfg.Sources.OfficialA.Enabled())
	assert.False(t, cfg.Sources.OfficialB.Enabled())
	assert.Equal(t, "CC-BY-4.0", cfg.Sources.OfficialA.License)
	assert.Equal(t, -30.0, cfg.Bounds.MinLat)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit file must exist")
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "geocoder too fast", modify: func(c *Config) { c.Geocoder.Interval = 500 * time.Millisecond }},
		{name: "unknown driver", modify: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "missing dsn", modify: func(c *Config) { c.Database.DSN = "" }},
		{name: "zero batch", modify: func(c *Config) { c.Reconcile.BatchSize = 0 }},
		{name: "inverted bounds", modify: func(c *Config) { c.Bounds.MinLat, c.Bounds.MaxLat = 5, -35 }},
		{name: "minio without keys", modify: func(c *Config) { c.MinIO.Endpoint = "localhost:9000" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, base.Validate())
}
