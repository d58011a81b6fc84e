package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/utils"
)

// New opens the queue driver named in cfg. rdb is only used by the redis driver.
func New(ctx context.Context, cfg config.QueueConfig, rdb *redis.Client) (Queue, error) {
	const op = "queue.New"

	switch cfg.Driver {
	case "", "redis":
		if rdb == nil {
			return nil, utils.E(utils.CodeConfig, op, "redis queue needs REDIS_URL", nil)
		}
		q, err := NewStreamQueue(ctx, rdb, StreamOptions{
			Stream:            cfg.Stream,
			Group:             cfg.Group,
			DeadLetterStream:  cfg.DeadLetterStream,
			VisibilityTimeout: cfg.VisibilityTimeout,
		})
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to create consumer group", err)
		}
		return q, nil
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			return nil, utils.E(utils.CodeConfig, op, "rabbitmq queue needs RABBITMQ_URL", nil)
		}
		q, err := NewRabbitQueue(RabbitOptions{URL: cfg.RabbitURL, VisibilityTimeout: cfg.VisibilityTimeout})
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to connect to rabbitmq", err)
		}
		return q, nil
	default:
		return nil, utils.E(utils.CodeConfig, op, fmt.Sprintf("unknown queue driver %q", cfg.Driver), nil)
	}
}
