package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sameboat/backend/internal/metrics"
	"github.com/sameboat/backend/internal/models"
	"github.com/sameboat/backend/internal/notify"
	"github.com/sameboat/backend/internal/queue"
	"github.com/sameboat/backend/internal/storage"
	"github.com/sameboat/backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// JobStore is the part of the job repository the worker touches.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.Job, error)
	SetAttachmentURL(ctx context.Context, id string, slot models.Slot, url string) error
}

type EventRecorder interface {
	Record(ctx context.Context, ev *models.AttachmentEvent) error
}

type Outcome string

const (
	OutcomeAcked        Outcome = "acked"
	OutcomeDropped      Outcome = "dropped" // terminal failure, acknowledged
	OutcomeRetried      Outcome = "retried"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// AttachmentWorkerPool consumes attachment tasks: uploads land in the object
// store and are reconciled into their job's slot column, deletes remove
// objects.
type AttachmentWorkerPool struct {
	Queue queue.Queue
	Jobs  JobStore
	Store storage.ObjectStore

	Events   EventRecorder   // optional
	Notifier notify.Notifier // optional

	MaxDeliveries  int
	NumWorkers     int
	Logger         *logrus.Entry
	ConsumerPrefix string

	// DrainTimeout bounds how long a task already in progress may keep
	// running after the Start context is cancelled.
	DrainTimeout time.Duration

	wg sync.WaitGroup
}

func (p *AttachmentWorkerPool) Start(ctx context.Context) error {
	if p.Queue == nil || p.Jobs == nil || p.Store == nil {
		return errors.New("AttachmentWorkerPool missing dependency: Queue/Jobs/Store must be set")
	}
	p.defaults()

	for i := 0; i < p.NumWorkers; i++ {
		name := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		c, err := p.Queue.Consumer(name)
		if err != nil {
			return fmt.Errorf("consumer %s: %w", name, err)
		}
		p.wg.Add(1)
		go p.runConsumer(ctx, name, c)
	}
	return nil
}

// Wait blocks until every consumer has stopped after ctx is cancelled.
func (p *AttachmentWorkerPool) Wait() { p.wg.Wait() }

func (p *AttachmentWorkerPool) defaults() {
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 4
	}
	if p.DrainTimeout <= 0 {
		p.DrainTimeout = 30 * time.Second
	}
	p.MaxDeliveries = p.maxDeliveries()
	p.Logger = p.logger()
}

func (p *AttachmentWorkerPool) maxDeliveries() int {
	if p.MaxDeliveries <= 0 {
		return 5
	}
	return p.MaxDeliveries
}

func (p *AttachmentWorkerPool) logger() *logrus.Entry {
	if p.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return p.Logger
}

func (p *AttachmentWorkerPool) runConsumer(ctx context.Context, name string, c queue.Consumer) {
	defer p.wg.Done()
	log := p.Logger.WithField("consumer", name)

	for {
		d, err := c.Receive(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.WithError(err).Warn("receive failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		tctx, done := p.taskContext(ctx)
		p.Process(tctx, c, d)
		done()
	}
}

// taskContext keeps ctx's values but not its cancellation: once ctx ends the
// task gets DrainTimeout more to finish and settle its delivery.
func (p *AttachmentWorkerPool) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() {
		select {
		case <-tctx.Done():
		case <-time.After(p.DrainTimeout):
			cancel()
		}
	})
	return tctx, func() {
		stop()
		cancel()
	}
}

// Process handles one delivery to completion and settles it on c.
func (p *AttachmentWorkerPool) Process(ctx context.Context, c queue.Consumer, d *queue.Delivery) Outcome {
	start := time.Now()

	t := d.Task
	log := p.logger().WithFields(logrus.Fields{
		"stream_id": d.ID,
		"task_kind": t.Kind,
		"attempt":   d.Attempt,
	})
	ev := &models.AttachmentEvent{
		TaskID:  d.ID,
		Kind:    string(t.Kind),
		JobID:   t.JobID,
		Slot:    t.Slot,
		Key:     t.Key,
		Attempt: d.Attempt,
	}

	var (
		outcome Outcome
		userID  string
	)
	switch {
	case d.Err != nil:
		log.WithError(d.Err).Error("undecodable task dropped")
		ev.Error = d.Err.Error()
		outcome = p.settle(ctx, c, d, log, nil)
	case d.Attempt > p.maxDeliveries():
		outcome = p.deadLetter(ctx, c, d, log, fmt.Sprintf("delivered %d times", d.Attempt))
	case t.Kind == queue.KindUpload:
		var err error
		userID, err = p.upload(ctx, t, ev, log)
		outcome = p.finish(ctx, c, d, log, err)
		if err != nil {
			ev.Error = err.Error()
		}
	case t.Kind == queue.KindDelete:
		err := p.delete(ctx, t, log)
		outcome = p.finish(ctx, c, d, log, err)
		if err != nil {
			ev.Error = err.Error()
		}
	default:
		outcome = p.settle(ctx, c, d, log, nil)
	}

	elapsed := time.Since(start)
	metrics.TasksProcessed.WithLabelValues(string(t.Kind), string(outcome)).Inc()
	metrics.TaskDuration.WithLabelValues(string(t.Kind)).Observe(elapsed.Seconds())

	ev.UserID = userID
	ev.Status = eventStatus(t.Kind, outcome)
	ev.Duration = elapsed.Milliseconds()
	p.publish(ctx, log, ev)
	return outcome
}

// upload returns the job owner's id once it is known.
func (p *AttachmentWorkerPool) upload(ctx context.Context, t queue.Task, ev *models.AttachmentEvent, log *logrus.Entry) (string, error) {
	const op = "AttachmentWorker.upload"

	log = log.WithFields(logrus.Fields{"job_id": t.JobID, "slot": t.Slot})
	if !t.Slot.Valid() {
		return "", utils.E(utils.CodeInvalidArgument, op, "slot not allowed: "+string(t.Slot), nil)
	}
	if len(t.Payload) == 0 {
		return "", utils.E(utils.CodeInvalidArgument, op, "empty payload", nil)
	}
	if t.JobID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "missing job id", nil)
	}

	job, err := p.Jobs.GetByID(ctx, t.JobID)
	if errors.Is(err, utils.ErrNotFound) {
		return "", utils.E(utils.CodeNotFound, op, "job no longer exists", err)
	}
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to load job", err)
	}

	key := storage.BuildKey(job.UserID, utils.SanitizeFilename(t.Filename))
	ev.Key = key
	log = log.WithField("key", key)

	url, err := p.Store.Put(ctx, key, t.Payload, mimetype.Detect(t.Payload).String())
	if err != nil {
		return job.UserID, utils.E(utils.CodeUnavailable, op, "failed to upload object", err)
	}
	ev.URL = url

	if err := p.Jobs.SetAttachmentURL(ctx, job.ID, t.Slot, url); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			// deleted while we uploaded; the key may be shared with a live job, so it stays
			log.Warn("job deleted during upload, object left in place")
			return job.UserID, utils.E(utils.CodeNotFound, op, "job deleted during upload", err)
		}
		return job.UserID, utils.E(utils.CodeUnavailable, op, "failed to reconcile attachment url", err)
	}

	log.Info("attachment uploaded")
	return job.UserID, nil
}

func (p *AttachmentWorkerPool) delete(ctx context.Context, t queue.Task, log *logrus.Entry) error {
	const op = "AttachmentWorker.delete"

	if t.Key == "" {
		return utils.E(utils.CodeInvalidArgument, op, "missing key", nil)
	}
	if err := p.Store.Delete(ctx, t.Key); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to delete object", err)
	}
	log.WithField("key", t.Key).Info("attachment deleted")
	return nil
}

// finish settles a processed delivery: success and terminal failures are
// acknowledged, anything else goes back to the queue until the delivery
// budget runs out.
func (p *AttachmentWorkerPool) finish(ctx context.Context, c queue.Consumer, d *queue.Delivery, log *logrus.Entry, err error) Outcome {
	switch {
	case err == nil:
		return p.settle(ctx, c, d, log, nil)
	case utils.IsCode(err, utils.CodeInvalidArgument), utils.IsCode(err, utils.CodeNotFound):
		log.WithError(err).Warn("attachment task dropped")
		return p.settle(ctx, c, d, log, err)
	case d.Attempt >= p.maxDeliveries():
		return p.deadLetter(ctx, c, d, log, err.Error())
	default:
		log.WithError(err).Warn("attachment task failed, left for redelivery")
		if rerr := c.Retry(ctx, d); rerr != nil {
			log.WithError(rerr).Error("failed to return task to the queue")
		}
		return OutcomeRetried
	}
}

func (p *AttachmentWorkerPool) settle(ctx context.Context, c queue.Consumer, d *queue.Delivery, log *logrus.Entry, cause error) Outcome {
	if err := c.Ack(ctx, d); err != nil {
		log.WithError(err).Error("ack failed")
	}
	if cause != nil || d.Err != nil {
		return OutcomeDropped
	}
	if d.Task.Kind != queue.KindUpload && d.Task.Kind != queue.KindDelete {
		return OutcomeDropped
	}
	return OutcomeAcked
}

func (p *AttachmentWorkerPool) deadLetter(ctx context.Context, c queue.Consumer, d *queue.Delivery, log *logrus.Entry, reason string) Outcome {
	if err := c.DeadLetter(ctx, d, reason); err != nil {
		log.WithError(err).Error("failed to dead-letter task")
		return OutcomeRetried
	}
	if d.Task.Kind == queue.KindDelete {
		log.WithField("key", d.Task.Key).Error("orphaned object: delete gave up after max deliveries")
	} else {
		log.WithFields(logrus.Fields{"job_id": d.Task.JobID, "slot": d.Task.Slot, "reason": reason}).
			Error("attachment task dead-lettered")
	}
	return OutcomeDeadLettered
}

func eventStatus(kind queue.Kind, o Outcome) models.EventStatus {
	switch o {
	case OutcomeAcked:
		if kind == queue.KindDelete {
			return models.EventDeleted
		}
		return models.EventUploaded
	case OutcomeRetried:
		return models.EventRetrying
	case OutcomeDeadLettered:
		return models.EventDeadLettered
	}
	return models.EventDropped
}

func (p *AttachmentWorkerPool) publish(ctx context.Context, log *logrus.Entry, ev *models.AttachmentEvent) {
	if p.Events != nil {
		if err := p.Events.Record(ctx, ev); err != nil {
			log.WithError(err).Warn("failed to record attachment event")
		}
	}
	// owners only hear about uploads that resolved or gave up
	if p.Notifier == nil || ev.UserID == "" || ev.Status == models.EventRetrying {
		return
	}
	if err := p.Notifier.Publish(ctx, ev.UserID, ev); err != nil {
		log.WithError(err).Warn("failed to publish attachment event")
	}
}
