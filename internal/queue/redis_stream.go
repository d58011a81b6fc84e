package queue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sameboat/backend/internal/metrics"
)

type StreamOptions struct {
	Stream           string
	Group            string
	DeadLetterStream string

	// VisibilityTimeout is how long a delivered, unacknowledged task stays
	// hidden before another consumer may claim it.
	VisibilityTimeout time.Duration
	Block             time.Duration
}

// StreamQueue is the attachment queue on a Redis Stream with one consumer group.
type StreamQueue struct {
	rdb *redis.Client
	opt StreamOptions
}

func NewStreamQueue(ctx context.Context, rdb *redis.Client, opt StreamOptions) (*StreamQueue, error) {
	if opt.Stream == "" {
		opt.Stream = "attachments:stream"
	}
	if opt.Group == "" {
		opt.Group = "attachment-workers"
	}
	if opt.DeadLetterStream == "" {
		opt.DeadLetterStream = opt.Stream + ":dead"
	}
	if opt.VisibilityTimeout <= 0 {
		opt.VisibilityTimeout = 5 * time.Minute
	}
	if opt.Block <= 0 {
		opt.Block = 5 * time.Second
	}

	err := rdb.XGroupCreateMkStream(ctx, opt.Stream, opt.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, err
	}
	return &StreamQueue{rdb: rdb, opt: opt}, nil
}

func (q *StreamQueue) Close() error { return nil }

func (q *StreamQueue) Enqueue(ctx context.Context, t Task) error {
	if err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opt.Stream,
		Values: t.Values(),
	}).Err(); err != nil {
		return err
	}
	metrics.TasksEnqueued.WithLabelValues(string(t.Kind)).Inc()
	return nil
}

func (q *StreamQueue) Consumer(name string) (Consumer, error) {
	if name == "" {
		return nil, errors.New("consumer name is required")
	}
	return &streamConsumer{q: q, name: name}, nil
}

// streamConsumer holds at most one entry at a time. Entries it has not
// started on stay unowned so the visibility clock only runs for work in
// progress.
type streamConsumer struct {
	q    *StreamQueue
	name string
}

func (c *streamConsumer) Receive(ctx context.Context) (*Delivery, error) {
	q := c.q
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// tasks whose consumer died or never acked
		claimed, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.opt.Stream,
			Group:    q.opt.Group,
			Consumer: c.name,
			MinIdle:  q.opt.VisibilityTimeout,
			Start:    "0-0",
			Count:    1,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		if len(claimed) > 0 {
			msg := claimed[0]
			return q.delivery(msg, q.deliveryCount(ctx, msg.ID)), nil
		}

		res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.opt.Group,
			Consumer: c.name,
			Streams:  []string{q.opt.Stream, ">"},
			Count:    1,
			Block:    q.opt.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, stream := range res {
			for _, msg := range stream.Messages {
				return q.delivery(msg, 1), nil
			}
		}
	}
}

func (c *streamConsumer) Ack(ctx context.Context, d *Delivery) error {
	return c.q.rdb.XAck(ctx, c.q.opt.Stream, c.q.opt.Group, d.ID).Err()
}

// Retry leaves the entry pending; XAUTOCLAIM hands it out again once it has
// been idle for the visibility timeout.
func (c *streamConsumer) Retry(context.Context, *Delivery) error { return nil }

func (c *streamConsumer) DeadLetter(ctx context.Context, d *Delivery, reason string) error {
	values := make(map[string]any, len(d.values)+4)
	for k, v := range d.values {
		values[k] = v
	}
	values["source_id"] = d.ID
	values["reason"] = reason
	values["attempt"] = strconv.Itoa(d.Attempt)
	values["failed_at"] = strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)

	_, err := c.q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: c.q.opt.DeadLetterStream, Values: values})
		pipe.XAck(ctx, c.q.opt.Stream, c.q.opt.Group, d.ID)
		return nil
	})
	return err
}

func (q *StreamQueue) delivery(msg redis.XMessage, attempt int) *Delivery {
	d := &Delivery{ID: msg.ID, Attempt: attempt, values: msg.Values}
	if len(msg.Values) == 0 {
		d.Err = ErrMalformedTask // entry trimmed while pending
		return d
	}
	d.Task, d.Err = TaskFromValues(msg.Values)
	return d
}

// deliveryCount is the number of times id has been delivered, the claim that
// just happened included.
func (q *StreamQueue) deliveryCount(ctx context.Context, id string) int {
	pend, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.opt.Stream,
		Group:  q.opt.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pend) == 0 {
		return 2
	}
	return int(pend[0].RetryCount)
}

func (q *StreamQueue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error

	if s.Length, err = q.rdb.XLen(ctx, q.opt.Stream).Result(); err != nil {
		return s, err
	}
	pend, err := q.rdb.XPending(ctx, q.opt.Stream, q.opt.Group).Result()
	if err != nil {
		return s, err
	}
	s.Pending = pend.Count
	if s.DeadLetters, err = q.rdb.XLen(ctx, q.opt.DeadLetterStream).Result(); err != nil {
		return s, err
	}

	groups, err := q.rdb.XInfoGroups(ctx, q.opt.Stream).Result()
	if err != nil {
		return s, err
	}
	for _, g := range groups {
		if g.Name == q.opt.Group {
			s.Consumers = g.Consumers
		}
	}
	return s, nil
}

// Trim drops acknowledged entries from the work stream and caps the
// dead-letter stream at deadLetterLimit entries. Pending entries are never
// trimmed.
func (q *StreamQueue) Trim(ctx context.Context, deadLetterLimit int64) (int64, error) {
	pend, err := q.rdb.XPending(ctx, q.opt.Stream, q.opt.Group).Result()
	if err != nil {
		return 0, err
	}

	minID := pend.Lower
	if pend.Count == 0 {
		groups, err := q.rdb.XInfoGroups(ctx, q.opt.Stream).Result()
		if err != nil {
			return 0, err
		}
		for _, g := range groups {
			if g.Name == q.opt.Group {
				minID = g.LastDeliveredID
			}
		}
	}

	var trimmed int64
	if minID != "" && minID != "0-0" {
		if trimmed, err = q.rdb.XTrimMinID(ctx, q.opt.Stream, minID).Result(); err != nil {
			return 0, err
		}
	}
	if deadLetterLimit > 0 {
		if err := q.rdb.XTrimMaxLenApprox(ctx, q.opt.DeadLetterStream, deadLetterLimit, 0).Err(); err != nil {
			return trimmed, err
		}
	}
	return trimmed, nil
}

func (q *StreamQueue) DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := q.rdb.XRevRangeN(ctx, q.opt.DeadLetterStream, "+", "-", limit).Result()
	if err != nil {
		return nil, err
	}

	out := make([]DeadLetter, 0, len(msgs))
	for _, m := range msgs {
		get := func(k string) string {
			s, _ := m.Values[k].(string)
			return s
		}
		dl := DeadLetter{
			ID:     m.ID,
			Kind:   Kind(get("kind")),
			JobID:  get("job_id"),
			Slot:   get("slot"),
			Key:    get("key"),
			Reason: get("reason"),
		}
		dl.Filename = get("filename")
		if t, err := TaskFromValues(m.Values); err == nil {
			dl.PayloadSize = len(t.Payload)
		}
		dl.Attempt, _ = strconv.Atoi(get("attempt"))
		if ms, err := strconv.ParseInt(get("failed_at"), 10, 64); err == nil {
			dl.FailedAt = time.UnixMilli(ms).UTC()
		}
		out = append(out, dl)
	}
	return out, nil
}
