package scheduler

import (
	"context"
	"time"

	"github.com/sameboat/backend/internal/metrics"
	"github.com/sameboat/backend/internal/queue"
	"github.com/sirupsen/logrus"
)

// Trimmer is implemented by queues whose storage grows until trimmed.
type Trimmer interface {
	Trim(ctx context.Context, deadLetterLimit int64) (int64, error)
}

// Scheduler runs queue maintenance on a fixed interval: depth gauges, a
// dead-letter report and, where supported, stream trimming.
type Scheduler struct {
	Queue           queue.Inspector
	Interval        time.Duration
	DeadLetterLimit int64
	Logger          *logrus.Entry
}

func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.Logger.WithError(err).Warn("maintenance tick failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one maintenance pass.
func (s *Scheduler) Tick(ctx context.Context) error {
	st, err := s.Queue.Stats(ctx)
	if err != nil {
		return err
	}
	metrics.QueueDepth.WithLabelValues("stream").Set(float64(st.Length))
	metrics.QueueDepth.WithLabelValues("pending").Set(float64(st.Pending))
	metrics.QueueDepth.WithLabelValues("dead_letters").Set(float64(st.DeadLetters))

	log := s.Logger.WithFields(logrus.Fields{
		"length":       st.Length,
		"pending":      st.Pending,
		"dead_letters": st.DeadLetters,
		"consumers":    st.Consumers,
	})
	if st.DeadLetters > 0 {
		log.Warn("dead-lettered attachment tasks waiting for review")
	} else {
		log.Debug("queue stats")
	}

	t, ok := s.Queue.(Trimmer)
	if !ok {
		return nil
	}
	n, err := t.Trim(ctx, s.DeadLetterLimit)
	if err != nil {
		return err
	}
	if n > 0 {
		s.Logger.WithField("removed", n).Info("trimmed queue streams")
	}
	return nil
}
