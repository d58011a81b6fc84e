package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sameboat/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptOf(t *testing.T) {
	tests := []struct {
		name        string
		headers     amqp.Table
		redelivered bool
		want        int
	}{
		{"no headers", nil, false, 1},
		{"first delivery", amqp.Table{attemptHeader: int32(1)}, false, 1},
		{"int64 header", amqp.Table{attemptHeader: int64(3)}, false, 3},
		{"unknown type", amqp.Table{attemptHeader: "3"}, false, 1},
		{"zero is clamped", amqp.Table{attemptHeader: int32(0)}, false, 1},
		{"redelivered after crash", amqp.Table{attemptHeader: int32(1)}, true, 2},
		{"redelivered retry", amqp.Table{attemptHeader: int32(2)}, true, 3},
		{"delivery count", amqp.Table{attemptHeader: int32(1), deliveryCountHeader: int64(4)}, true, 5},
		{"delivery count after retry", amqp.Table{attemptHeader: int32(2), deliveryCountHeader: int64(1)}, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attemptOf(tt.headers, tt.redelivered))
		})
	}
}

func TestRepeatedCrashesReachTheLimit(t *testing.T) {
	headers := amqp.Table{attemptHeader: int32(1)}
	for n := 1; n <= 5; n++ {
		headers[deliveryCountHeader] = int64(n)
		assert.Equal(t, n+1, attemptOf(headers, true))
	}
}

func TestRetryHeaders(t *testing.T) {
	d := &Delivery{Attempt: 2}
	h := retryHeaders(d)
	assert.Equal(t, int32(3), h[attemptHeader])
	assert.NotContains(t, h, reasonHeader)

	// the retry queue dead-letters the message back as a fresh delivery
	assert.Equal(t, 3, attemptOf(h, false))
}

func TestDeadLetterHeaders(t *testing.T) {
	h := deadLetterHeaders(&Delivery{Attempt: 5}, "storage unavailable")
	assert.Equal(t, int32(5), h[attemptHeader])
	assert.Equal(t, "storage unavailable", h[reasonHeader])
}

func TestRabbitReceive(t *testing.T) {
	task := NewUploadTask("job-1", models.SlotResume, []byte("pdf"), "cv.pdf")
	body, err := json.Marshal(task)
	require.NoError(t, err)

	msgs := make(chan amqp.Delivery, 2)
	msgs <- amqp.Delivery{
		MessageId:   "m-1",
		Headers:     amqp.Table{attemptHeader: int32(1)},
		Redelivered: true,
		Body:        body,
	}
	msgs <- amqp.Delivery{DeliveryTag: 7, Body: []byte("{")}
	c := &rabbitConsumer{msgs: msgs}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d, err := c.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Err)
	assert.Equal(t, "m-1", d.ID)
	assert.Equal(t, 2, d.Attempt)
	assert.Equal(t, "job-1", d.Task.JobID)

	bad, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", bad.ID)
	assert.ErrorIs(t, bad.Err, ErrMalformedTask)

	close(msgs)
	_, err = c.Receive(ctx)
	assert.Error(t, err)
}
