package queue

import (
	"context"
	"time"
)

// Delivery is one hand-off of a task to a consumer.
type Delivery struct {
	ID      string
	Task    Task
	Attempt int   // 1 on first delivery
	Err     error // decode failure; the task cannot be processed

	values map[string]any // redis: original stream fields
	handle any            // driver specific ack handle
}

type Enqueuer interface {
	// Enqueue returns once the task is durably recorded.
	Enqueue(ctx context.Context, t Task) error
}

type Consumer interface {
	// Receive blocks until a task is available or ctx is done.
	Receive(ctx context.Context) (*Delivery, error)
	// Ack removes the task for good.
	Ack(ctx context.Context, d *Delivery) error
	// Retry hands the task back for redelivery after the visibility window.
	Retry(ctx context.Context, d *Delivery) error
	// DeadLetter parks the task out of the work queue and acknowledges it.
	DeadLetter(ctx context.Context, d *Delivery, reason string) error
}

type Queue interface {
	Enqueuer
	Consumer(name string) (Consumer, error)
	Close() error
}

type Stats struct {
	Length      int64 `json:"length"`
	Pending     int64 `json:"pending"`
	DeadLetters int64 `json:"dead_letters"`
	Consumers   int64 `json:"consumers"`
}

type Inspector interface {
	Stats(ctx context.Context) (Stats, error)
}

type DeadLetter struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	JobID       string    `json:"job_id,omitempty"`
	Slot        string    `json:"slot,omitempty"`
	Filename    string    `json:"filename,omitempty"`
	Key         string    `json:"key,omitempty"`
	PayloadSize int       `json:"payload_size,omitempty"`
	Reason      string    `json:"reason"`
	Attempt     int       `json:"attempt"`
	FailedAt    time.Time `json:"failed_at"`
}

type DeadLetterReader interface {
	DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error)
}
