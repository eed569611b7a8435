package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceMirror publishes the roster outside the process.
type PresenceMirror interface {
	Mirror(ctx context.Context, online []string) error
}

// DefaultPresenceKey is the Redis set holding the online identity ids.
const DefaultPresenceKey = "presence:online"

// RedisPresence mirrors the roster into a Redis set so other processes can
// read who is online.
type RedisPresence struct {
	rdb *redis.Client
	key string
}

// NewRedisPresence connects to the Redis server at rawURL and checks it
// answers.
func NewRedisPresence(ctx context.Context, rawURL string) (*RedisPresence, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPresence{rdb: rdb, key: DefaultPresenceKey}, nil
}

// Mirror replaces the set with online in one transaction.
func (p *RedisPresence) Mirror(ctx context.Context, online []string) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.key)
		if len(online) > 0 {
			members := make([]any, len(online))
			for i, id := range online {
				members[i] = id
			}
			pipe.SAdd(ctx, p.key, members...)
		}
		return nil
	})
	return err
}

// Online reads the mirrored roster.
func (p *RedisPresence) Online(ctx context.Context) ([]string, error) {
	return p.rdb.SMembers(ctx, p.key).Result()
}

// Close clears the mirrored set and closes the client.
func (p *RedisPresence) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.rdb.Del(ctx, p.key).Err()
	return p.rdb.Close()
}
