package services

import (
	"context"

	"github.com/sameboat/backend/internal/queue"
	"github.com/sameboat/backend/internal/storage"
	"github.com/sirupsen/logrus"
)

// Cleanup turns a stored attachment URL into a delete task. It never fails
// its caller.
type Cleanup struct {
	Queue  queue.Enqueuer
	Logger *logrus.Entry
}

// Fire enqueues deletion of the object behind url and reports whether a
// task was enqueued.
func (c *Cleanup) Fire(ctx context.Context, url string) bool {
	if url == "" {
		return false
	}
	l := c.Logger.WithField("url", url)

	key, err := storage.ExtractKey(url)
	if err != nil {
		l.WithError(err).Warn("skipping cleanup of malformed attachment url")
		return false
	}
	if err := c.Queue.Enqueue(ctx, queue.NewDeleteTask(key)); err != nil {
		l.WithError(err).WithField("key", key).Error("failed to enqueue attachment delete; object may be orphaned")
		return false
	}
	return true
}
