package callgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seemabhatta/CustomerCallCenterAnalytics-sub002/feed"
)

// Config is the file-level configuration of a Store, usually read from callgraph.yaml.
type Config struct {
	// DataDir is the database directory. It is created on first open.
	DataDir string `yaml:"data_dir"`

	Graph *GraphConfig `yaml:"graph,omitempty"`

	Queue *QueueConfig `yaml:"queue,omitempty"`

	// Feed enables the Redis change feed. Nil disables it unless WithFeed is used.
	Feed *FeedConfig `yaml:"feed,omitempty"`
}

// GraphConfig tunes the embedded engine.
type GraphConfig struct {
	// BusyTimeout is how long a statement waits on a locked database.
	// Format: Go duration string (e.g., "5s")
	// Default: 5s
	BusyTimeout string `yaml:"busy_timeout,omitempty"`

	// MaxOpenConns bounds the connection pool shared by reads and the writer.
	// Default: 8
	MaxOpenConns int `yaml:"max_open_conns,omitempty"`
}

// GetBusyTimeout parses the busy timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (g *GraphConfig) GetBusyTimeout() time.Duration {
	return parseDuration(g.busyTimeout(), 5*time.Second)
}

func (g *GraphConfig) busyTimeout() string {
	if g == nil {
		return ""
	}
	return g.BusyTimeout
}

// GetMaxOpenConns returns the configured pool size or the default value.
func (g *GraphConfig) GetMaxOpenConns() int {
	if g == nil || g.MaxOpenConns <= 0 {
		return 8
	}
	return g.MaxOpenConns
}

// QueueConfig defines the write queue lifecycle timeouts.
type QueueConfig struct {
	// StopTimeout bounds how long Close waits for queued writes to finish.
	// Format: Go duration string (e.g., "30s", "1m")
	// Default: 30s
	StopTimeout string `yaml:"stop_timeout,omitempty"`

	// PublishTimeout bounds each change feed publish.
	// Default: 2s
	PublishTimeout string `yaml:"publish_timeout,omitempty"`
}

// GetStopTimeout parses the stop timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (q *QueueConfig) GetStopTimeout() time.Duration {
	if q == nil {
		return 30 * time.Second
	}
	return parseDuration(q.StopTimeout, 30*time.Second)
}

// GetPublishTimeout parses the publish timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (q *QueueConfig) GetPublishTimeout() time.Duration {
	if q == nil {
		return 2 * time.Second
	}
	return parseDuration(q.PublishTimeout, 2*time.Second)
}

// FeedConfig points the change feed at a Redis server.
type FeedConfig struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string `yaml:"url"`

	// Channel defaults to feed.DefaultChannel.
	Channel string `yaml:"channel,omitempty"`

	// HistoryKey defaults to feed.DefaultHistoryKey.
	HistoryKey string `yaml:"history_key,omitempty"`

	// HistorySize defaults to feed.DefaultHistorySize.
	HistorySize int `yaml:"history_size,omitempty"`

	// ConnectTimeout is the time allowed to reach Redis on open.
	// Default: 5s
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// GetConnectTimeout parses the connect timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (f *FeedConfig) GetConnectTimeout() time.Duration {
	if f == nil {
		return 5 * time.Second
	}
	return parseDuration(f.ConnectTimeout, 5*time.Second)
}

func (f *FeedConfig) redisOptions() feed.RedisOptions {
	return feed.RedisOptions{
		URL:            f.URL,
		ConnectTimeout: f.GetConnectTimeout(),
		Channel:        f.Channel,
		HistoryKey:     f.HistoryKey,
		HistorySize:    f.HistorySize,
	}
}

// Validate reports the first problem with the configuration, wrapped in
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	if c.Graph != nil && c.Graph.MaxOpenConns < 0 {
		return fmt.Errorf("%w: graph.max_open_conns must not be negative", ErrInvalidConfig)
	}

	durations := map[string]string{
		"graph.busy_timeout": c.Graph.busyTimeout(),
	}
	if c.Queue != nil {
		durations["queue.stop_timeout"] = c.Queue.StopTimeout
		durations["queue.publish_timeout"] = c.Queue.PublishTimeout
	}
	if c.Feed != nil {
		if c.Feed.URL == "" {
			return fmt.Errorf("%w: feed.url is required when feed is set", ErrInvalidConfig)
		}
		if c.Feed.HistorySize < 0 {
			return fmt.Errorf("%w: feed.history_size must not be negative", ErrInvalidConfig)
		}
		durations["feed.connect_timeout"] = c.Feed.ConnectTimeout
	}

	names := make([]string, 0, len(durations))
	for name := range durations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := durations[name]
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	return nil
}

// LoadConfig reads and parses a configuration file. If path is a directory it looks
// for callgraph.yaml, then callgraph.yml, in that directory. A relative data_dir is
// resolved against the directory holding the file.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range []string{"callgraph.yaml", "callgraph.yml"} {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("no callgraph.yaml or callgraph.yml found in %s", path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(configPath), cfg.DataDir)
	}
	return &cfg, nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
