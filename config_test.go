package callgraph

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "callgraph.yaml", `
data_dir: ./data
graph:
  busy_timeout: 2s
  max_open_conns: 4
queue:
  stop_timeout: 1m
  publish_timeout: 500ms
feed:
  url: redis://localhost:6379
  channel: graph-changes
  history_size: 50
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
		assert.Equal(t, 2*time.Second, cfg.Graph.GetBusyTimeout())
		assert.Equal(t, 4, cfg.Graph.GetMaxOpenConns())
		assert.Equal(t, time.Minute, cfg.Queue.GetStopTimeout())
		assert.Equal(t, 500*time.Millisecond, cfg.Queue.GetPublishTimeout())
		require.NotNil(t, cfg.Feed)
		assert.Equal(t, "graph-changes", cfg.Feed.Channel)
		assert.Equal(t, 50, cfg.Feed.HistorySize)
		assert.Equal(t, 5*time.Second, cfg.Feed.GetConnectTimeout())
	})

	t.Run("directory lookup", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "callgraph.yml", "data_dir: /var/lib/callgraph\n")

		cfg, err := LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/callgraph", cfg.DataDir)
		assert.Nil(t, cfg.Feed)
	})

	t.Run("directory without config", func(t *testing.T) {
		_, err := LoadConfig(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no callgraph.yaml")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to stat path")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "callgraph.yaml", "data_dir: [unterminated\n")
		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, 5*time.Second, cfg.Graph.GetBusyTimeout())
	assert.Equal(t, 8, cfg.Graph.GetMaxOpenConns())
	assert.Equal(t, 30*time.Second, cfg.Queue.GetStopTimeout())
	assert.Equal(t, 2*time.Second, cfg.Queue.GetPublishTimeout())
	assert.Equal(t, 5*time.Second, cfg.Feed.GetConnectTimeout())

	bad := &QueueConfig{StopTimeout: "soon"}
	assert.Equal(t, 30*time.Second, bad.GetStopTimeout(), "invalid value falls back to default")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "minimal", cfg: Config{DataDir: "data"}},
		{name: "missing data dir", cfg: Config{}, wantErr: "data_dir is required"},
		{name: "bad busy timeout", cfg: Config{DataDir: "d", Graph: &GraphConfig{BusyTimeout: "fast"}}, wantErr: "graph.busy_timeout"},
		{name: "negative pool", cfg: Config{DataDir: "d", Graph: &GraphConfig{MaxOpenConns: -1}}, wantErr: "max_open_conns"},
		{name: "zero stop timeout", cfg: Config{DataDir: "d", Queue: &QueueConfig{StopTimeout: "0s"}}, wantErr: "queue.stop_timeout must be positive"},
		{name: "feed without url", cfg: Config{DataDir: "d", Feed: &FeedConfig{}}, wantErr: "feed.url is required"},
		{name: "negative history", cfg: Config{DataDir: "d", Feed: &FeedConfig{URL: "redis://x", HistorySize: -1}}, wantErr: "history_size"},
		{name: "bad connect timeout", cfg: Config{DataDir: "d", Feed: &FeedConfig{URL: "redis://x", ConnectTimeout: "x"}}, wantErr: "feed.connect_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
