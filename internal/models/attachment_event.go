package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventStatus string

const (
	EventUploaded     EventStatus = "uploaded"
	EventDeleted      EventStatus = "deleted"
	EventDropped      EventStatus = "dropped"       // terminal failure, acknowledged
	EventRetrying     EventStatus = "retrying"      // left for redelivery
	EventDeadLettered EventStatus = "dead_lettered" // delivery budget exhausted
)

// AttachmentEvent is one processed delivery of an attachment task.
type AttachmentEvent struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TaskID   string             `bson:"task_id" json:"task_id"`
	Kind     string             `bson:"kind" json:"kind"` // upload|delete
	JobID    string             `bson:"job_id,omitempty" json:"job_id,omitempty"`
	UserID   string             `bson:"user_id,omitempty" json:"-"`
	Slot     Slot               `bson:"slot,omitempty" json:"slot,omitempty"`
	Key      string             `bson:"key,omitempty" json:"key,omitempty"`
	URL      string             `bson:"url,omitempty" json:"url,omitempty"`
	Status   EventStatus        `bson:"status" json:"status"`
	Attempt  int                `bson:"attempt" json:"attempt"`
	Error    string             `bson:"error,omitempty" json:"error,omitempty"`
	Duration int64              `bson:"duration_ms" json:"duration_ms"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"-"` // TTL index
}
