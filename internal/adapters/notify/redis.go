package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

// RedisNotifier publishes grants on "<channel>:<userID>".
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier returns a RedisNotifier publishing under channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Channel returns the channel a user's grants are published on.
func (n *RedisNotifier) Channel(userID string) string {
	return n.channel + ":" + userID
}

func (n *RedisNotifier) Notify(ctx context.Context, userID string, achievements []model.Achievement) error {
	payload, err := json.Marshal(NewMessage(userID, achievements))
	if err != nil {
		metrics.RecordNotification("redis", "error")
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.Channel(userID), payload).Err(); err != nil {
		metrics.RecordNotification("redis", "error")
		return fmt.Errorf("publish to %s: %w", n.Channel(userID), err)
	}
	metrics.RecordNotification("redis", "ok")
	return nil
}
