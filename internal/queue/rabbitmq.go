package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sameboat/backend/internal/metrics"
)

const (
	AttachmentsExchange  = "attachments.exchange"
	AttachmentsDLX       = "attachments.dlx"
	AttachmentsQueue     = "attachments.queue"
	AttachmentsRetry     = "attachments.retry.queue"
	AttachmentsDeadQueue = "attachments.dead_letter.queue"

	routingKey    = "attachment"
	attemptHeader = "x-attempt"
	reasonHeader  = "x-reason"

	// set by quorum queues on every redelivery of the same message
	deliveryCountHeader = "x-delivery-count"
)

type RabbitOptions struct {
	URL               string
	VisibilityTimeout time.Duration // delay before a retried task is redelivered
	Prefetch          int
}

// RabbitQueue is the attachment queue on RabbitMQ. Publishes are confirmed
// by the broker before Enqueue returns.
type RabbitQueue struct {
	conn *amqp.Connection
	opt  RabbitOptions

	mu sync.Mutex
	ch *amqp.Channel // publishing channel, in confirm mode
}

func NewRabbitQueue(opt RabbitOptions) (*RabbitQueue, error) {
	if opt.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if opt.VisibilityTimeout <= 0 {
		opt.VisibilityTimeout = 5 * time.Minute
	}
	if opt.Prefetch <= 0 {
		opt.Prefetch = 10
	}

	conn, err := amqp.Dial(opt.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	q := &RabbitQueue{conn: conn, ch: ch, opt: opt}
	if err := q.setupTopology(); err != nil {
		q.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		q.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return q, nil
}

// setupTopology declares exchanges and queues. Idempotent.
func (q *RabbitQueue) setupTopology() error {
	ch := q.ch
	if err := ch.ExchangeDeclare(AttachmentsExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(AttachmentsDLX, "fanout", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(AttachmentsDeadQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(AttachmentsDeadQueue, "", AttachmentsDLX, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(AttachmentsQueue, true, false, false, false, amqp.Table{
		"x-queue-type":           "quorum",
		"x-dead-letter-exchange": AttachmentsDLX,
	}); err != nil {
		return err
	}
	if err := ch.QueueBind(AttachmentsQueue, routingKey, AttachmentsExchange, false, nil); err != nil {
		return err
	}

	// retried tasks sit here until the TTL sends them back to the main exchange
	_, err := ch.QueueDeclare(AttachmentsRetry, true, false, false, false, amqp.Table{
		"x-message-ttl":             q.opt.VisibilityTimeout.Milliseconds(),
		"x-dead-letter-exchange":    AttachmentsExchange,
		"x-dead-letter-routing-key": routingKey,
	})
	return err
}

func (q *RabbitQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		q.ch.Close()
	}
	return q.conn.Close()
}

func (q *RabbitQueue) Enqueue(ctx context.Context, t Task) error {
	if err := q.publish(ctx, AttachmentsExchange, routingKey, t, amqp.Table{attemptHeader: int32(1)}); err != nil {
		return err
	}
	metrics.TasksEnqueued.WithLabelValues(string(t.Kind)).Inc()
	return nil
}

func (q *RabbitQueue) publish(ctx context.Context, exchange, key string, t Task, headers amqp.Table) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}

	q.mu.Lock()
	conf, err := q.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	})
	q.mu.Unlock()
	if err != nil {
		return err
	}

	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("rabbitmq: publish nacked by broker")
	}
	return nil
}

func (q *RabbitQueue) Consumer(name string) (Consumer, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(q.opt.Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, err
	}
	msgs, err := ch.Consume(AttachmentsQueue, name, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &rabbitConsumer{q: q, msgs: msgs}, nil
}

type rabbitConsumer struct {
	q    *RabbitQueue
	msgs <-chan amqp.Delivery
}

func (c *rabbitConsumer) Receive(ctx context.Context) (*Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-c.msgs:
		if !ok {
			return nil, errors.New("rabbitmq: delivery channel closed")
		}
		d := &Delivery{ID: msg.MessageId, Attempt: attemptOf(msg.Headers, msg.Redelivered), handle: msg}
		if d.ID == "" {
			d.ID = fmt.Sprintf("%d", msg.DeliveryTag)
		}
		if err := json.Unmarshal(msg.Body, &d.Task); err != nil {
			d.Err = fmt.Errorf("%w: %v", ErrMalformedTask, err)
		}
		return d, nil
	}
}

// attemptOf numbers a delivery. x-attempt counts explicit retries and the
// broker's delivery count adds deliveries lost to a crashed or disconnected
// consumer. A redelivered message without a count is at least one attempt on.
func attemptOf(h amqp.Table, redelivered bool) int {
	attempt := headerInt(h, attemptHeader)
	if attempt < 1 {
		attempt = 1
	}
	if n := headerInt(h, deliveryCountHeader); n > 0 {
		return attempt + n
	}
	if redelivered {
		return attempt + 1
	}
	return attempt
}

func headerInt(h amqp.Table, key string) int {
	switch v := h[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func retryHeaders(d *Delivery) amqp.Table {
	return amqp.Table{attemptHeader: int32(d.Attempt + 1)}
}

func deadLetterHeaders(d *Delivery, reason string) amqp.Table {
	return amqp.Table{attemptHeader: int32(d.Attempt), reasonHeader: reason}
}

func (c *rabbitConsumer) Ack(_ context.Context, d *Delivery) error {
	msg, ok := d.handle.(amqp.Delivery)
	if !ok {
		return errors.New("rabbitmq: foreign delivery")
	}
	return msg.Ack(false)
}

func (c *rabbitConsumer) Retry(ctx context.Context, d *Delivery) error {
	if err := c.q.publish(ctx, "", AttachmentsRetry, d.Task, retryHeaders(d)); err != nil {
		return err
	}
	return c.Ack(ctx, d)
}

func (c *rabbitConsumer) DeadLetter(ctx context.Context, d *Delivery, reason string) error {
	if err := c.q.publish(ctx, "", AttachmentsDeadQueue, d.Task, deadLetterHeaders(d, reason)); err != nil {
		return err
	}
	return c.Ack(ctx, d)
}

func (q *RabbitQueue) Stats(ctx context.Context) (Stats, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return Stats{}, err
	}
	defer ch.Close()

	main, err := ch.QueueDeclarePassive(AttachmentsQueue, true, false, false, false, nil)
	if err != nil {
		return Stats{}, err
	}
	retry, err := ch.QueueDeclarePassive(AttachmentsRetry, true, false, false, false, nil)
	if err != nil {
		return Stats{}, err
	}
	dead, err := ch.QueueDeclarePassive(AttachmentsDeadQueue, true, false, false, false, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Length:      int64(main.Messages),
		Pending:     int64(retry.Messages),
		DeadLetters: int64(dead.Messages),
		Consumers:   int64(main.Consumers),
	}, nil
}
