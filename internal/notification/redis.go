package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"course-tracker-backend/config"
)

const connectionTimeout = 2 * time.Second

// NewRedisClient creates a redis client and checks the connection.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisNotifier publishes each message on a fixed pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Send(ctx context.Context, message string) error {
	if err := n.client.Publish(ctx, n.channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.channel, err)
	}
	return nil
}
