package testutil

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sameboat/backend/internal/queue"
)

// MemQueue is a queue.Queue held in memory. Retried deliveries are
// available again immediately.
type MemQueue struct {
	mu      sync.Mutex
	seq     int
	ready   []*queue.Delivery
	flight  map[string]*queue.Delivery
	history []queue.Task
	acked   int
	dead    []queue.DeadLetter

	// EnqueueErr, when set, fails every Enqueue.
	EnqueueErr error
}

func NewMemQueue() *MemQueue {
	return &MemQueue{flight: map[string]*queue.Delivery{}}
}

func (q *MemQueue) Enqueue(_ context.Context, t queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.EnqueueErr != nil {
		return q.EnqueueErr
	}
	q.seq++
	q.ready = append(q.ready, &queue.Delivery{ID: strconv.Itoa(q.seq), Task: t, Attempt: 1})
	q.history = append(q.history, t)
	return nil
}

func (q *MemQueue) Consumer(string) (queue.Consumer, error) { return q, nil }

func (q *MemQueue) Close() error { return nil }

// Tasks returns every task ever enqueued, in order.
func (q *MemQueue) Tasks() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Task(nil), q.history...)
}

// Pending is the number of tasks waiting or in flight.
func (q *MemQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.flight)
}

func (q *MemQueue) Acked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked
}

// Inject adds a delivery as is, for malformed or late deliveries.
func (q *MemQueue) Inject(d *queue.Delivery) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, d)
}

// TryReceive returns the next ready delivery without blocking.
func (q *MemQueue) TryReceive() (*queue.Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil, false
	}
	d := q.ready[0]
	q.ready = q.ready[1:]
	q.flight[d.ID] = d
	return d, true
}

func (q *MemQueue) Receive(ctx context.Context) (*queue.Delivery, error) {
	for {
		if d, ok := q.TryReceive(); ok {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (q *MemQueue) Ack(_ context.Context, d *queue.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.flight[d.ID]; !ok {
		return errors.New("unknown delivery " + d.ID)
	}
	delete(q.flight, d.ID)
	q.acked++
	return nil
}

func (q *MemQueue) Retry(_ context.Context, d *queue.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.flight, d.ID)
	again := *d
	again.Attempt++
	q.ready = append(q.ready, &again)
	return nil
}

func (q *MemQueue) DeadLetter(_ context.Context, d *queue.Delivery, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.flight, d.ID)
	q.dead = append(q.dead, queue.DeadLetter{
		ID:          d.ID,
		Kind:        d.Task.Kind,
		JobID:       d.Task.JobID,
		Slot:        string(d.Task.Slot),
		Filename:    d.Task.Filename,
		Key:         d.Task.Key,
		PayloadSize: len(d.Task.Payload),
		Reason:      reason,
		Attempt:     d.Attempt,
		FailedAt:    time.Now().UTC(),
	})
	return nil
}

func (q *MemQueue) Stats(context.Context) (queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Stats{
		Length:      int64(len(q.ready) + len(q.flight)),
		Pending:     int64(len(q.flight)),
		DeadLetters: int64(len(q.dead)),
		Consumers:   1,
	}, nil
}

func (q *MemQueue) DeadLetters(_ context.Context, limit int64) ([]queue.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := []queue.DeadLetter{}
	for i := len(q.dead) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, q.dead[i])
	}
	return out, nil
}
