package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/feescan/internal/core/domain"
)

// Client wraps Redis operations for the failed-range queue.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func queueKey(sourceID string) string {
	return fmt.Sprintf("failed_ranges:%s", sourceID)
}

// Push queues a failed range, scored by its from-height so the lowest
// range is reprocessed first.
func (c *Client) Push(ctx context.Context, fr *domain.FailedRange) error {
	member, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("failed to encode range: %w", err)
	}

	err = c.rdb.ZAdd(ctx, queueKey(fr.SourceID), redis.Z{
		Score:  float64(fr.FromHeight),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Pop removes and returns the lowest queued range for a source.
func (c *Client) Pop(ctx context.Context, sourceID string) (*domain.FailedRange, bool, error) {
	key := queueKey(sourceID)

	results, err := c.rdb.ZRange(ctx, key, 0, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("zrange failed: %w", err)
	}
	if len(results) == 0 {
		return nil, false, nil
	}

	var fr domain.FailedRange
	if err := json.Unmarshal([]byte(results[0]), &fr); err != nil {
		return nil, false, fmt.Errorf("invalid range entry: %w", err)
	}

	if err := c.rdb.ZRem(ctx, key, results[0]).Err(); err != nil {
		return nil, false, fmt.Errorf("zrem failed: %w", err)
	}
	return &fr, true, nil
}

// Ranges lists queued ranges for a source.
func (c *Client) Ranges(ctx context.Context, sourceID string) ([]*domain.FailedRange, error) {
	results, err := c.rdb.ZRange(ctx, queueKey(sourceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	ranges := make([]*domain.FailedRange, 0, len(results))
	for _, raw := range results {
		var fr domain.FailedRange
		if err := json.Unmarshal([]byte(raw), &fr); err != nil {
			return nil, fmt.Errorf("invalid range entry: %w", err)
		}
		ranges = append(ranges, &fr)
	}
	return ranges, nil
}
