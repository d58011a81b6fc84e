package services

import (
	"context"
	"errors"

	"github.com/sameboat/backend/internal/models"
	mongorepo "github.com/sameboat/backend/internal/repositories/mongo"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/utils"
)

// EventService reads and writes the attachment audit log. With no event
// repository configured it records nothing and lists nothing.
type EventService interface {
	Record(ctx context.Context, ev *models.AttachmentEvent) error
	ListForJob(ctx context.Context, jobID, ownerID string, limit int64) ([]models.AttachmentEvent, error)
}

type eventService struct {
	events mongorepo.EventRepository
	jobs   pgrepo.JobRepository
}

func NewEventService(events mongorepo.EventRepository, jobs pgrepo.JobRepository) EventService {
	return &eventService{events: events, jobs: jobs}
}

func (s *eventService) Record(ctx context.Context, ev *models.AttachmentEvent) error {
	const op = "EventService.Record"

	if s.events == nil {
		return nil
	}
	if err := s.events.Insert(ctx, ev); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to record attachment event", err)
	}
	return nil
}

func (s *eventService) ListForJob(ctx context.Context, jobID, ownerID string, limit int64) ([]models.AttachmentEvent, error) {
	const op = "EventService.ListForJob"

	if _, err := s.jobs.GetForOwner(ctx, jobID, ownerID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	if s.events == nil {
		return []models.AttachmentEvent{}, nil
	}

	out, err := s.events.ListByJob(ctx, jobID, ownerID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to list attachment events", err)
	}
	return out, nil
}
