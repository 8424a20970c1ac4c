package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("uses defaults without a file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
		t.Setenv("PHOTO_STORAGE_PATH", t.TempDir())

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, ":5000", cfg.ServerAddress)
		assert.Equal(t, "local", cfg.Storage.Backend)
		assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxBytes())
		assert.Equal(t, 5*time.Second, cfg.Timeline.AutoplayInterval())
		assert.Equal(t, 300, cfg.Thumbnails.Width)
		assert.True(t, filepath.IsAbs(cfg.Storage.LocalPath))
		assert.False(t, cfg.UsePostgres())
	})

	t.Run("reads json file", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{
			"serverAddress": ":8080",
			"storage": {"backend": "s3", "bucket": "wedding", "historyPrefix": "history/"},
			"timeline": {"axisStart": "2024-01-01", "timezone": "UTC"}
		}`)
		t.Setenv("CONFIG_PATH", path)

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.ServerAddress)
		assert.Equal(t, "wedding", cfg.Storage.Bucket)
		assert.Equal(t, 100, cfg.Storage.PageSize, "unset fields keep defaults")

		start, err := cfg.Timeline.Start(time.UTC)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	})

	t.Run("reads yaml file", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", `
serverAddress: ":9090"
storage:
  backend: gcs
  bucket: memories
notifications:
  fcmCredentialsPath: /etc/fcm.json
  hostTokens: [a, b]
`)
		t.Setenv("CONFIG_PATH", path)

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.ServerAddress)
		assert.Equal(t, "gcs", cfg.Storage.Backend)
		assert.True(t, cfg.Notifications.Enabled())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"serverAddress": ":8080"}`)
		t.Setenv("CONFIG_PATH", path)
		t.Setenv("PHOTO_STORAGE_PATH", t.TempDir())
		t.Setenv("SERVER_ADDRESS", ":7070")
		t.Setenv("DATABASE_URL", "postgres://localhost/wedding")
		t.Setenv("FCM_HOST_TOKENS", " t1, ,t2 ")
		t.Setenv("TIMELINE_AUTOPLAY_SECONDS", "8")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, ":7070", cfg.ServerAddress)
		assert.True(t, cfg.UsePostgres())
		assert.Equal(t, []string{"t1", "t2"}, cfg.Notifications.HostTokens)
		assert.Equal(t, 8*time.Second, cfg.Timeline.AutoplayInterval())
	})

	t.Run("logging and telemetry", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", `
logging:
  format: json
telemetry:
  endpoint: collector:4317
  sampleRatio: 0.25
`)
		t.Setenv("CONFIG_PATH", path)
		t.Setenv("PHOTO_STORAGE_PATH", t.TempDir())
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("OTEL_ENABLED", "false")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, Logging{Level: "debug", Format: "json"}, cfg.Logging)
		assert.False(t, cfg.Telemetry.Enabled)
		assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
		assert.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
		assert.Equal(t, 30*time.Second, cfg.Telemetry.MetricInterval())
	})

	t.Run("rejects sample ratio above one", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"telemetry": {"sampleRatio": 2}}`)
		t.Setenv("CONFIG_PATH", path)
		t.Setenv("PHOTO_STORAGE_PATH", t.TempDir())

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects remote backend without bucket", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"storage": {"backend": "s3"}}`)
		t.Setenv("CONFIG_PATH", path)

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects bad timezone", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{"timeline": {"timezone": "Mars/Olympus"}}`)
		t.Setenv("CONFIG_PATH", path)
		t.Setenv("PHOTO_STORAGE_PATH", t.TempDir())

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects malformed file", func(t *testing.T) {
		path := writeConfig(t, "config.json", `{not json`)
		t.Setenv("CONFIG_PATH", path)

		_, err := Load()
		assert.Error(t, err)
	})
}
