// Package testutil holds in-memory stand-ins for the repositories, the queue
// and the object store.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sameboat/backend/internal/models"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/utils"
	"gorm.io/datatypes"
)

// MemJobRepo is a pgrepo.JobRepository over a map. Each call is atomic.
type MemJobRepo struct {
	mu   sync.Mutex
	jobs map[string]models.Job

	// SlotWrites counts SetAttachmentURL calls that changed a row.
	SlotWrites int
}

func NewMemJobRepo() *MemJobRepo {
	return &MemJobRepo{jobs: map[string]models.Job{}}
}

func (r *MemJobRepo) Create(_ context.Context, j *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	r.jobs[j.ID] = *j
	return nil
}

func (r *MemJobRepo) GetByID(_ context.Context, id string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &j, nil
}

func (r *MemJobRepo) GetForOwner(_ context.Context, id, userID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.UserID != userID {
		return nil, utils.ErrNotFound
	}
	return &j, nil
}

func (r *MemJobRepo) List(_ context.Context, userID string, f pgrepo.JobFilter) ([]models.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Job
	for _, j := range r.jobs {
		if j.UserID != userID {
			continue
		}
		if f.Status != "" && j.CurrentStatus != f.Status {
			continue
		}
		if f.EmploymentType != "" && j.EmploymentType != f.EmploymentType {
			continue
		}
		if f.IsActive != nil && j.IsActive != *f.IsActive {
			continue
		}
		if s := strings.ToLower(f.Search); s != "" &&
			!strings.Contains(strings.ToLower(j.JobTitle), s) &&
			!strings.Contains(strings.ToLower(j.CompanyName), s) {
			continue
		}
		out = append(out, j)
	}
	return out, int64(len(out)), nil
}

func (r *MemJobRepo) UpdateFields(_ context.Context, id, userID string, fields map[string]any) (*models.Job, error) {
	for _, s := range models.Slots {
		if _, ok := fields[s.Column()]; ok {
			return nil, pgrepo.ErrAttachmentColumn
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.UserID != userID {
		return nil, utils.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case "job_title":
			j.JobTitle = v.(string)
		case "company_name":
			j.CompanyName = v.(string)
		case "location":
			j.Location = v.(string)
		case "employment_type":
			j.EmploymentType = v.(models.EmploymentType)
		case "experience_required":
			j.ExperienceRequired = v.(string)
		case "skills":
			j.Skills = v.(pq.StringArray)
		case "notes":
			j.Notes = v.(datatypes.JSONSlice[string])
		case "current_status":
			j.CurrentStatus = v.(models.JobStatus)
		case "applied_date":
			d := v.(time.Time)
			j.AppliedDate = &d
		case "job_url":
			j.JobURL = v.(string)
		case "is_active":
			j.IsActive = v.(bool)
		case "updated_at":
			j.UpdatedAt = v.(time.Time)
		}
	}
	r.jobs[id] = j
	return &j, nil
}

func (r *MemJobRepo) SetAttachmentURL(_ context.Context, id string, slot models.Slot, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return utils.ErrNotFound
	}
	j.SetSlotURL(slot, url)
	r.jobs[id] = j
	r.SlotWrites++
	return nil
}

func (r *MemJobRepo) DeleteForOwner(_ context.Context, id, userID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.UserID != userID {
		return nil, utils.ErrNotFound
	}
	delete(r.jobs, id)
	return &j, nil
}

// Put stores j as is, bypassing Create.
func (r *MemJobRepo) Put(j models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
}
