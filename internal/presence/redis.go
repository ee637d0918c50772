package presence

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/rehome-app/rehome-api/internal/config"
)

const (
	onlineSetKey  = "presence:online"
	connCountsKey = "presence:conns"
)

// RedisDirectory is a Directory shared by all API processes. Connection
// counts live in a hash, membership in a set, so a user connected to two
// different processes stays online until both sessions close.
type RedisDirectory struct {
	client *redis.Client
}

// NewRedisClient opens a client from the presence configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisDirectory wraps a Redis client.
func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{client: client}
}

func (d *RedisDirectory) Connect(ctx context.Context, userID string) error {
	if err := d.client.HIncrBy(ctx, connCountsKey, userID, 1).Err(); err != nil {
		return err
	}
	return d.client.SAdd(ctx, onlineSetKey, userID).Err()
}

func (d *RedisDirectory) Disconnect(ctx context.Context, userID string) error {
	n, err := d.client.HIncrBy(ctx, connCountsKey, userID, -1).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		if err := d.client.HDel(ctx, connCountsKey, userID).Err(); err != nil {
			return err
		}
		return d.client.SRem(ctx, onlineSetKey, userID).Err()
	}
	return nil
}

func (d *RedisDirectory) IsOnline(ctx context.Context, userID string) (bool, error) {
	return d.client.SIsMember(ctx, onlineSetKey, userID).Result()
}

func (d *RedisDirectory) Online(ctx context.Context) ([]string, error) {
	return d.client.SMembers(ctx, onlineSetKey).Result()
}

// Ping verifies connectivity at startup.
func (d *RedisDirectory) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
