package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "watch", cfg.Mode)
	assert.Equal(t, "btcusd", cfg.Feed.Symbol)
	assert.Equal(t, 500*time.Millisecond, cfg.Book.RenderInterval.Duration)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"

[feed]
symbol = "ethusd"

[book]
depth = 5
render_interval = "1s"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "ethusd", cfg.Feed.Symbol)
	assert.Equal(t, 5, cfg.Book.Depth)
	assert.Equal(t, time.Second, cfg.Book.RenderInterval.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "wss://ws.bitstamp.net", cfg.Feed.WsURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "watch"`), 0o600))

	t.Setenv("BOOKWATCH_FEED_SYMBOL", "ltcusd")
	t.Setenv("BOOKWATCH_BOOK_DEPTH", "25")
	t.Setenv("BOOKWATCH_BOOK_RENDER_INTERVAL", "250ms")
	t.Setenv("BOOKWATCH_RETENTION_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ltcusd", cfg.Feed.Symbol)
	assert.Equal(t, 25, cfg.Book.Depth)
	assert.Equal(t, 250*time.Millisecond, cfg.Book.RenderInterval.Duration)
	assert.False(t, cfg.Retention.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Feed.WsURL = "https://ws.bitstamp.net"
	cfg.Book.Depth = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "ws_url")
	assert.Contains(t, err.Error(), "depth")
}

func TestValidateStoresOnlyForRecordingModes(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""

	// watch mode does not touch the stores.
	require.NoError(t, cfg.Validate())

	cfg.Mode = "record"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: host")
	assert.Contains(t, err.Error(), "redis: addr")
}
