package mongo

import (
	"context"
	"time"

	"github.com/sameboat/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const EventsCollection = "attachment_events"

type EventRepository interface {
	Insert(ctx context.Context, e *models.AttachmentEvent) error
	ListByJob(ctx context.Context, jobID, userID string, limit int64) ([]models.AttachmentEvent, error)
}

type eventRepo struct {
	col *mongo.Collection
	ttl time.Duration
}

// NewEventRepo stores events that expire ttl after they are written. A zero
// ttl keeps them for a week.
func NewEventRepo(db *mongo.Database, ttl time.Duration) EventRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &eventRepo{col: db.Collection(EventsCollection), ttl: ttl}
}

func (r *eventRepo) Insert(ctx context.Context, e *models.AttachmentEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = e.Timestamp.Add(r.ttl)
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *eventRepo) ListByJob(ctx context.Context, jobID, userID string, limit int64) ([]models.AttachmentEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := r.col.Find(ctx, bson.M{"job_id": jobID, "user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.AttachmentEvent{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
