package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sameboat/backend/internal/models"
	"github.com/sameboat/backend/internal/queue"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/storage"
	"github.com/sameboat/backend/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// JobFields carries the writable, non-attachment columns of a Job. A nil
// field is left untouched on update.
type JobFields struct {
	JobTitle           *string
	CompanyName        *string
	Location           *string
	EmploymentType     *models.EmploymentType
	ExperienceRequired *string
	Skills             *[]string
	Notes              *[]string
	CurrentStatus      *models.JobStatus
	AppliedDate        *time.Time
	JobURL             *string
	IsActive           *bool
}

// Attachments holds the files sent with a request, by slot.
type Attachments map[models.Slot]*Attachment

type JobService interface {
	Create(ctx context.Context, ownerID string, f JobFields, files Attachments) (*models.Job, error)
	Update(ctx context.Context, jobID, ownerID string, f JobFields, files Attachments) (*models.Job, error)
	Delete(ctx context.Context, jobID, ownerID string) error
	Get(ctx context.Context, jobID, ownerID string) (*models.Job, error)
	List(ctx context.Context, ownerID string, f pgrepo.JobFilter) ([]models.Job, int64, error)
}

type jobService struct {
	jobs     pgrepo.JobRepository
	queue    queue.Enqueuer
	cleanup  *Cleanup
	maxBytes int64
	log      *logrus.Entry
}

func NewJobService(jobs pgrepo.JobRepository, q queue.Enqueuer, maxUploadBytes int64, log *logrus.Entry) JobService {
	return &jobService{
		jobs:     jobs,
		queue:    q,
		cleanup:  &Cleanup{Queue: q, Logger: log},
		maxBytes: maxUploadBytes,
		log:      log,
	}
}

func (s *jobService) Create(ctx context.Context, ownerID string, f JobFields, files Attachments) (*models.Job, error) {
	const op = "JobService.Create"

	if ownerID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	for _, name := range []struct {
		field string
		v     *string
	}{
		{"job_title", f.JobTitle},
		{"company_name", f.CompanyName},
		{"experience_required", f.ExperienceRequired},
	} {
		if name.v == nil || strings.TrimSpace(*name.v) == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, name.field+" is required", nil)
		}
	}
	if err := validateFields(op, f); err != nil {
		return nil, err
	}
	files, err := s.validateFiles(files)
	if err != nil {
		return nil, err
	}

	j := &models.Job{
		UserID:         ownerID,
		EmploymentType: models.EmploymentFullTime,
		CurrentStatus:  models.StatusSaved,
	}
	applyFields(j, f)
	j.IsActive = true

	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create job", err)
	}

	for _, slot := range models.Slots {
		if a := files[slot]; a != nil {
			s.enqueueUpload(ctx, j, slot, a)
		}
	}
	return j, nil
}

func (s *jobService) Update(ctx context.Context, jobID, ownerID string, f JobFields, files Attachments) (*models.Job, error) {
	const op = "JobService.Update"

	if err := validateFields(op, f); err != nil {
		return nil, err
	}
	for field, v := range map[string]*string{"job_title": f.JobTitle, "company_name": f.CompanyName} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, field+" cannot be blank", nil)
		}
	}
	files, err := s.validateFiles(files)
	if err != nil {
		return nil, err
	}

	cols := columns(f)
	if f.IsActive == nil {
		cols["is_active"] = true
	}
	cols["updated_at"] = time.Now().UTC()

	j, err := s.jobs.UpdateFields(ctx, jobID, ownerID, cols)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update job", err)
	}

	for _, slot := range models.Slots {
		a := files[slot]
		if a == nil {
			continue
		}
		// The old object goes first. When the new file lands on the same key
		// the upload overwrites it, and a delete would race the upload.
		if old := j.SlotURL(slot); old != "" {
			if key, err := storage.ExtractKey(old); err != nil || key != storage.BuildKey(j.UserID, a.Filename) {
				s.cleanup.Fire(ctx, old)
			}
		}
		s.enqueueUpload(ctx, j, slot, a)
	}
	return j, nil
}

func (s *jobService) Delete(ctx context.Context, jobID, ownerID string) error {
	const op = "JobService.Delete"

	j, err := s.jobs.DeleteForOwner(ctx, jobID, ownerID)
	if errors.Is(err, utils.ErrNotFound) {
		return utils.E(utils.CodeNotFound, op, "job not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete job", err)
	}

	for _, slot := range models.Slots {
		s.cleanup.Fire(ctx, j.SlotURL(slot))
	}
	return nil
}

func (s *jobService) Get(ctx context.Context, jobID, ownerID string) (*models.Job, error) {
	const op = "JobService.Get"

	j, err := s.jobs.GetForOwner(ctx, jobID, ownerID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "job not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	return j, nil
}

func (s *jobService) List(ctx context.Context, ownerID string, f pgrepo.JobFilter) ([]models.Job, int64, error) {
	const op = "JobService.List"

	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, "invalid status", nil)
	}
	if f.EmploymentType != "" && !f.EmploymentType.Valid() {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, "invalid employment_type", nil)
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	jobs, total, err := s.jobs.List(ctx, ownerID, f)
	if err != nil {
		return nil, 0, utils.E(utils.CodeInternal, op, "failed to list jobs", err)
	}
	return jobs, total, nil
}

func (s *jobService) validateFiles(files Attachments) (Attachments, error) {
	out := Attachments{}
	for slot, a := range files {
		if a == nil {
			continue
		}
		if !slot.Valid() {
			return nil, utils.E(utils.CodeInvalidArgument, "JobService.validateFiles", "unknown attachment "+string(slot), nil)
		}
		v, err := ValidateAttachment(string(slot), a, s.maxBytes)
		if err != nil {
			return nil, err
		}
		out[slot] = v
	}
	return out, nil
}

// enqueueUpload does not fail the request. A lost task leaves the slot
// empty, which the user sees and can retry.
func (s *jobService) enqueueUpload(ctx context.Context, j *models.Job, slot models.Slot, a *Attachment) {
	task := queue.NewUploadTask(j.ID, slot, a.Data, a.Filename)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"job_id":   j.ID,
			"slot":     slot,
			"filename": a.Filename,
		}).Error("failed to enqueue attachment upload")
	}
}

func validateFields(op string, f JobFields) error {
	if f.EmploymentType != nil && !f.EmploymentType.Valid() {
		return utils.E(utils.CodeInvalidArgument, op, "invalid employment_type", nil)
	}
	if f.CurrentStatus != nil && !f.CurrentStatus.Valid() {
		return utils.E(utils.CodeInvalidArgument, op, "invalid current_status", nil)
	}

	limits := []struct {
		field string
		v     *string
		max   int
	}{
		{"job_title", f.JobTitle, 200},
		{"company_name", f.CompanyName, 250},
		{"location", f.Location, 300},
		{"experience_required", f.ExperienceRequired, 20},
		{"job_url", f.JobURL, 500},
	}
	for _, l := range limits {
		if l.v != nil && len(*l.v) > l.max {
			return utils.E(utils.CodeInvalidArgument, op, l.field+" is too long", nil)
		}
	}
	return nil
}

func applyFields(j *models.Job, f JobFields) {
	if f.JobTitle != nil {
		j.JobTitle = strings.TrimSpace(*f.JobTitle)
	}
	if f.CompanyName != nil {
		j.CompanyName = strings.TrimSpace(*f.CompanyName)
	}
	if f.Location != nil {
		j.Location = *f.Location
	}
	if f.EmploymentType != nil {
		j.EmploymentType = *f.EmploymentType
	}
	if f.ExperienceRequired != nil {
		j.ExperienceRequired = *f.ExperienceRequired
	}
	if f.Skills != nil {
		j.Skills = *f.Skills
	}
	if f.Notes != nil {
		j.Notes = *f.Notes
	}
	if f.CurrentStatus != nil {
		j.CurrentStatus = *f.CurrentStatus
	}
	if f.AppliedDate != nil {
		d := *f.AppliedDate
		j.AppliedDate = &d
	}
	if f.JobURL != nil {
		j.JobURL = *f.JobURL
	}
	if f.IsActive != nil {
		j.IsActive = *f.IsActive
	}
}

// columns maps the set fields to jobs columns for a partial update.
func columns(f JobFields) map[string]any {
	cols := map[string]any{}
	if f.JobTitle != nil {
		cols["job_title"] = strings.TrimSpace(*f.JobTitle)
	}
	if f.CompanyName != nil {
		cols["company_name"] = strings.TrimSpace(*f.CompanyName)
	}
	if f.Location != nil {
		cols["location"] = *f.Location
	}
	if f.EmploymentType != nil {
		cols["employment_type"] = *f.EmploymentType
	}
	if f.ExperienceRequired != nil {
		cols["experience_required"] = *f.ExperienceRequired
	}
	if f.Skills != nil {
		cols["skills"] = pq.StringArray(*f.Skills)
	}
	if f.Notes != nil {
		cols["notes"] = datatypes.NewJSONSlice(*f.Notes)
	}
	if f.CurrentStatus != nil {
		cols["current_status"] = *f.CurrentStatus
	}
	if f.AppliedDate != nil {
		cols["applied_date"] = *f.AppliedDate
	}
	if f.JobURL != nil {
		cols["job_url"] = *f.JobURL
	}
	if f.IsActive != nil {
		cols["is_active"] = *f.IsActive
	}
	return cols
}
