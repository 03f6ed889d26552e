package workload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher receives every roster the orchestrator publishes. Publishing is
// best-effort: an error is logged and the roster stays published in-process.
type Publisher interface {
	Publish(ctx context.Context, roster *Roster) error
}

// redisWriter is the subset of *redis.Client the publisher needs.
type redisWriter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher mirrors the roster to Redis so display processes outside
// this one can read it. The whole roster is written under one key, which
// keeps the replace-never-patch contract; a notification carrying the version
// goes out on the channel afterwards.
type RedisPublisher struct {
	client  redisWriter
	key     string
	channel string
	ttl     time.Duration
}

// NewRedisPublisher writes to key and notifies on key+":updates".
func NewRedisPublisher(client redisWriter, key string, ttl time.Duration) *RedisPublisher {
	return &RedisPublisher{client: client, key: key, channel: key + ":updates", ttl: ttl}
}

func (p *RedisPublisher) Publish(ctx context.Context, roster *Roster) error {
	payload, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}
	if err := p.client.Set(ctx, p.key, payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store roster: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, roster.Version).Err(); err != nil {
		return fmt.Errorf("failed to announce roster: %w", err)
	}
	return nil
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, roster *Roster) error

func (f PublisherFunc) Publish(ctx context.Context, roster *Roster) error { return f(ctx, roster) }
