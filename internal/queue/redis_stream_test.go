package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sameboat/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T, vis time.Duration) (*StreamQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q, err := NewStreamQueue(context.Background(), rdb, StreamOptions{
		Stream:            "test:stream",
		Group:             "test-group",
		VisibilityTimeout: vis,
		Block:             20 * time.Millisecond,
	})
	require.NoError(t, err)
	return q, mr
}

func receive(t *testing.T, c Consumer) *Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := c.Receive(ctx)
	require.NoError(t, err)
	return d
}

func TestStreamGroupCreationIsIdempotent(t *testing.T) {
	q, _ := newTestStream(t, time.Minute)
	_, err := NewStreamQueue(context.Background(), q.rdb, q.opt)
	assert.NoError(t, err)
}

func TestStreamEnqueueReceiveAck(t *testing.T) {
	q, _ := newTestStream(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, NewUploadTask("job-1", models.SlotCoverLetter, []byte("hello"), "c.txt")))

	c, err := q.Consumer("w-1")
	require.NoError(t, err)
	d := receive(t, c)
	require.NoError(t, d.Err)
	assert.Equal(t, 1, d.Attempt)
	assert.Equal(t, "job-1", d.Task.JobID)
	assert.Equal(t, []byte("hello"), d.Task.Payload)

	pend, err := q.rdb.XPending(ctx, "test:stream", "test-group").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pend.Count)

	require.NoError(t, c.Ack(ctx, d))
	pend, err = q.rdb.XPending(ctx, "test:stream", "test-group").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pend.Count)
}

func TestStreamReceiveHonoursContext(t *testing.T) {
	q, _ := newTestStream(t, time.Minute)
	c, err := q.Consumer("w-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Receive(ctx)
	assert.Error(t, err)
}

func TestStreamUnackedTaskIsRedelivered(t *testing.T) {
	q, _ := newTestStream(t, 10*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, NewDeleteTask("user_uploads/u/x.pdf")))

	first, err := q.Consumer("w-1")
	require.NoError(t, err)
	d := receive(t, first)
	require.NoError(t, first.Retry(ctx, d))

	time.Sleep(30 * time.Millisecond)

	second, err := q.Consumer("w-2")
	require.NoError(t, err)
	again := receive(t, second)
	assert.Equal(t, d.ID, again.ID)
	assert.Equal(t, 2, again.Attempt)
	assert.Equal(t, "user_uploads/u/x.pdf", again.Task.Key)
}

func TestClaimedEntryHasOneOwner(t *testing.T) {
	q, _ := newTestStream(t, 100*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, NewDeleteTask("user_uploads/u/1.pdf")))
	require.NoError(t, q.Enqueue(ctx, NewDeleteTask("user_uploads/u/2.pdf")))

	a, err := q.Consumer("w-a")
	require.NoError(t, err)
	b, err := q.Consumer("w-b")
	require.NoError(t, err)

	first := receive(t, a)
	assert.Equal(t, "user_uploads/u/1.pdf", first.Task.Key)

	// a reads one entry at a time, so the second is still unowned
	pend, err := q.rdb.XPending(ctx, "test:stream", "test-group").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pend.Count)

	time.Sleep(150 * time.Millisecond)

	// a stalled past the visibility timeout; b takes over its entry
	stolen := receive(t, b)
	assert.Equal(t, first.ID, stolen.ID)
	assert.Equal(t, 2, stolen.Attempt)

	next := receive(t, a)
	assert.NotEqual(t, stolen.ID, next.ID)
	assert.Equal(t, "user_uploads/u/2.pdf", next.Task.Key)
	assert.Equal(t, 1, next.Attempt)

	require.NoError(t, b.Ack(ctx, stolen))
	require.NoError(t, a.Ack(ctx, next))
	pend, err = q.rdb.XPending(ctx, "test:stream", "test-group").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pend.Count)
}

func TestStreamDeadLetter(t *testing.T) {
	q, _ := newTestStream(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, NewUploadTask("job-9", models.SlotResume, []byte("pdf-bytes"), "r.pdf")))

	c, err := q.Consumer("w-1")
	require.NoError(t, err)
	d := receive(t, c)
	require.NoError(t, c.DeadLetter(ctx, d, "storage unavailable"))

	pend, err := q.rdb.XPending(ctx, "test:stream", "test-group").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pend.Count)

	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, KindUpload, dead[0].Kind)
	assert.Equal(t, "job-9", dead[0].JobID)
	assert.Equal(t, "storage unavailable", dead[0].Reason)
	assert.Equal(t, 1, dead[0].Attempt)
	assert.Equal(t, len("pdf-bytes"), dead[0].PayloadSize)
}

func TestStreamMalformedEntry(t *testing.T) {
	q, _ := newTestStream(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "test:stream",
		Values: map[string]any{"kind": "resize"},
	}).Err())

	c, err := q.Consumer("w-1")
	require.NoError(t, err)
	d := receive(t, c)
	assert.ErrorIs(t, d.Err, ErrMalformedTask)
}

func TestConsumerNameRequired(t *testing.T) {
	q, _ := newTestStream(t, time.Minute)
	_, err := q.Consumer("")
	assert.Error(t, err)
}
