package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sameboat/backend/internal/models"
)

// Channel is the pub/sub channel carrying one user's attachment events.
func Channel(userID string) string { return "user:" + userID + ":jobs" }

type Notifier interface {
	Publish(ctx context.Context, userID string, ev *models.AttachmentEvent) error
}

type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, userID string, ev *models.AttachmentEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, Channel(userID), b).Err()
}

// Subscribe returns a subscription to userID's channel. The caller closes it.
func (n *RedisNotifier) Subscribe(ctx context.Context, userID string) *redis.PubSub {
	return n.rdb.Subscribe(ctx, Channel(userID))
}
