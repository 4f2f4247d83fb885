package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/barricade/pkg/barricade/storage"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[Database]
Driver = "mysql"
Path = "barricade:secret@tcp(127.0.0.1:3306)/barricade?parseTime=true"

[Clips]
Dir = "/var/lib/barricade/clips"

[Matcher]
MinConfidence = 65.0
MinScore = 8
Mock = true

[Server]
Addr = ":9090"
ShutdownTimeout = "3s"
`

func TestLoadOverridesDefaults(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, storage.DriverMySQL, c.Database.Driver)
	assert.Equal(t, "/var/lib/barricade/clips", c.Clips.Dir)
	assert.Equal(t, 65.0, c.Matcher.MinConfidence)
	assert.Equal(t, 8, c.Matcher.MinScore)
	assert.True(t, c.Matcher.Mock)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, Duration(3*time.Second), c.Server.ShutdownTimeout)

	// untouched sections keep their defaults
	assert.Equal(t, 11025, c.Matcher.SampleRate)
	assert.Equal(t, int64(32), c.Server.MaxUploadMB)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	_, err := Load(strings.NewReader("[Database\nDriver ="))
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`[Server]
ShutdownTimeout = "soon"`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultDBFile, c.Database.Path)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "barricade.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.Addr)
}

func TestFromEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barricade.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	t.Setenv("BARRICADE_CONFIG", path)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("BARRICADE_DB_PATH", "/tmp/env.sqlite3")
	t.Setenv("MIN_SCORE", "12")
	t.Setenv("MATCHER_MOCK", "false")
	t.Setenv("PORT", "7000")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_BUCKET", "clips")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, "/tmp/env.sqlite3", c.Database.Path)
	assert.Equal(t, 12, c.Matcher.MinScore)
	assert.False(t, c.Matcher.Mock)
	assert.Equal(t, 65.0, c.Matcher.MinConfidence, "file value without env override")
	assert.Equal(t, ":7000", c.Server.Addr)
	assert.True(t, c.Clips.Minio.Enabled())
	assert.True(t, c.Log.JSON)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.Origins)
}

func TestBadEnvValuesAreIgnored(t *testing.T) {
	t.Setenv("BARRICADE_CONFIG", "")
	t.Setenv("SAMPLE_RATE", "fast")
	t.Setenv("MINIO_USE_SSL", "maybe")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 11025, c.Matcher.SampleRate)
	assert.False(t, c.Clips.Minio.UseSSL)
}

func TestSaveRoundTrip(t *testing.T) {
	c, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))
	again, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestOptionsWithoutMinio(t *testing.T) {
	c := defaults()
	store, err := c.ClipStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, store)

	c.Matcher.Mock = true
	opts, err := c.Options(context.Background(), logger.Nop())
	require.NoError(t, err)
	assert.Len(t, opts, 8)
}
