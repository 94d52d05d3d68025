package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default Redis keys.
const (
	DefaultChannel     = "callgraph:changes"
	DefaultHistoryKey  = "callgraph:changes:recent"
	DefaultHistorySize = 1000
)

// Client publishes and consumes graph change events.
type Client interface {
	// Publish sends an event to subscribers and records it in the bounded history.
	Publish(ctx context.Context, event ChangeEvent) error

	// Subscribe returns a channel that receives events until ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)

	// Recent returns up to n of the most recent events, newest first.
	Recent(ctx context.Context, n int) ([]ChangeEvent, error)

	// Ping checks the connection.
	Ping(ctx context.Context) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// Channel is the pub/sub channel events are published on
	Channel string

	// HistoryKey is the list holding the most recent events
	HistoryKey string

	// HistorySize bounds the history list
	HistorySize int

	// Logger receives malformed-payload warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// RedisClient implements the Client interface using go-redis/v9.
type RedisClient struct {
	client      *redis.Client
	channel     string
	historyKey  string
	historySize int
	logger      *slog.Logger
}

// NewRedisClient creates a new change feed client with the given options.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}

	if opts.HistoryKey == "" {
		opts.HistoryKey = DefaultHistoryKey
	}

	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client:      client,
		channel:     opts.Channel,
		historyKey:  opts.HistoryKey,
		historySize: opts.HistorySize,
		logger:      opts.Logger.With("component", "feed"),
	}, nil
}

// Publish sends an event to the channel and pushes it onto the history list, trimmed
// to the configured size.
func (c *RedisClient) Publish(ctx context.Context, event ChangeEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid change event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	_, err = c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, c.channel, data)
		pipe.LPush(ctx, c.historyKey, data)
		pipe.LTrim(ctx, c.historyKey, 0, int64(c.historySize-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", c.channel, err)
	}

	return nil
}

// Subscribe creates a subscription to the change channel.
func (c *RedisClient) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	pubsub := c.client.Subscribe(ctx, c.channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", c.channel, err)
	}

	events := make(chan ChangeEvent)

	go func() {
		defer close(events)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					c.logger.Warn("dropping malformed change event", "channel", msg.Channel, "error", err)
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// Recent returns up to n of the most recent events, newest first. Entries that no
// longer decode are skipped.
func (c *RedisClient) Recent(ctx context.Context, n int) ([]ChangeEvent, error) {
	if n <= 0 {
		return []ChangeEvent{}, nil
	}

	raw, err := c.client.LRange(ctx, c.historyKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history %s: %w", c.historyKey, err)
	}

	events := make([]ChangeEvent, 0, len(raw))
	for _, item := range raw {
		var event ChangeEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			c.logger.Warn("skipping malformed history entry", "key", c.historyKey, "error", err)
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// Ping checks the connection.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
