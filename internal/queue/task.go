package queue

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sameboat/backend/internal/models"
)

type Kind string

const (
	KindUpload Kind = "upload"
	KindDelete Kind = "delete"
)

// Task is an immutable unit of attachment work.
type Task struct {
	Kind Kind `json:"kind"`

	// upload
	JobID    string      `json:"job_id,omitempty"`
	Slot     models.Slot `json:"slot,omitempty"`
	Filename string      `json:"filename,omitempty"`
	Payload  []byte      `json:"payload,omitempty"`

	// delete
	Key string `json:"key,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

func NewUploadTask(jobID string, slot models.Slot, payload []byte, filename string) Task {
	return Task{
		Kind:       KindUpload,
		JobID:      jobID,
		Slot:       slot,
		Filename:   filename,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

func NewDeleteTask(key string) Task {
	return Task{Kind: KindDelete, Key: key, EnqueuedAt: time.Now().UTC()}
}

var ErrMalformedTask = errors.New("malformed task")

// Values flattens the task into stream fields.
func (t Task) Values() map[string]any {
	v := map[string]any{
		"kind":        string(t.Kind),
		"enqueued_at": strconv.FormatInt(t.EnqueuedAt.UnixMilli(), 10),
	}
	switch t.Kind {
	case KindUpload:
		v["job_id"] = t.JobID
		v["slot"] = string(t.Slot)
		v["filename"] = t.Filename
		v["payload_base64"] = base64.StdEncoding.EncodeToString(t.Payload)
	case KindDelete:
		v["key"] = t.Key
	}
	return v
}

// TaskFromValues decodes stream fields written by Values. Field-level checks
// (slot name, empty payload) are left to the worker.
func TaskFromValues(values map[string]any) (Task, error) {
	get := func(k string) string {
		s, _ := values[k].(string)
		return s
	}

	t := Task{Kind: Kind(get("kind"))}
	if ms, err := strconv.ParseInt(get("enqueued_at"), 10, 64); err == nil {
		t.EnqueuedAt = time.UnixMilli(ms).UTC()
	}

	switch t.Kind {
	case KindUpload:
		t.JobID = get("job_id")
		t.Slot = models.Slot(get("slot"))
		t.Filename = get("filename")
		b, err := base64.StdEncoding.DecodeString(get("payload_base64"))
		if err != nil {
			return t, fmt.Errorf("%w: payload: %v", ErrMalformedTask, err)
		}
		t.Payload = b
	case KindDelete:
		t.Key = get("key")
	default:
		return t, fmt.Errorf("%w: unknown kind %q", ErrMalformedTask, t.Kind)
	}
	return t, nil
}
