package testutil

import (
	"context"
	"sync"

	"github.com/sameboat/backend/internal/models"
)

type MemEventRepo struct {
	mu     sync.Mutex
	events []models.AttachmentEvent
}

func (r *MemEventRepo) Insert(_ context.Context, e *models.AttachmentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

// Record lets the repo stand in for a workers.EventRecorder.
func (r *MemEventRepo) Record(ctx context.Context, e *models.AttachmentEvent) error {
	return r.Insert(ctx, e)
}

func (r *MemEventRepo) ListByJob(_ context.Context, jobID, userID string, limit int64) ([]models.AttachmentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.AttachmentEvent{}
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.JobID == jobID && e.UserID == userID {
			out = append(out, e)
		}
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemEventRepo) All() []models.AttachmentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AttachmentEvent(nil), r.events...)
}

// Notifications records published events by user.
type Notifications struct {
	mu   sync.Mutex
	sent map[string][]models.AttachmentEvent
}

func (n *Notifications) Publish(_ context.Context, userID string, ev *models.AttachmentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = map[string][]models.AttachmentEvent{}
	}
	n.sent[userID] = append(n.sent[userID], *ev)
	return nil
}

func (n *Notifications) For(userID string) []models.AttachmentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.AttachmentEvent(nil), n.sent[userID]...)
}

// Outbox is a mailer.Mailer that keeps what it was asked to send.
type Outbox struct {
	mu   sync.Mutex
	Mail []Mail
	Err  error
}

type Mail struct {
	To, Subject, Body string
}

func (o *Outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.Mail = append(o.Mail, Mail{To: to, Subject: subject, Body: body})
	return nil
}

func (o *Outbox) Last() (Mail, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Mail) == 0 {
		return Mail{}, false
	}
	return o.Mail[len(o.Mail)-1], true
}
