package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sameboat/backend/internal/models"
	"github.com/sameboat/backend/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAttachmentColumn is returned when a request-path update names a column
// owned by the attachment worker.
var ErrAttachmentColumn = errors.New("attachment url columns are written by the worker only")

type JobFilter struct {
	Status         models.JobStatus
	EmploymentType models.EmploymentType
	IsActive       *bool
	Search         string
	Limit          int
	Offset         int
}

type JobRepository interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetForOwner(ctx context.Context, id, userID string) (*models.Job, error)
	List(ctx context.Context, userID string, f JobFilter) ([]models.Job, int64, error)
	UpdateFields(ctx context.Context, id, userID string, fields map[string]any) (*models.Job, error)
	SetAttachmentURL(ctx context.Context, id string, slot models.Slot, url string) error
	DeleteForOwner(ctx context.Context, id, userID string) (*models.Job, error)
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, j *models.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}
	var j models.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &j, err
}

func (r *jobRepo) GetForOwner(ctx context.Context, id, userID string) (*models.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}
	var j models.Job
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &j, err
}

func (r *jobRepo) List(ctx context.Context, userID string, f JobFilter) ([]models.Job, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{}).Where("user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("current_status = ?", f.Status)
	}
	if f.EmploymentType != "" {
		q = q.Where("employment_type = ?", f.EmploymentType)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("job_title ILIKE ? OR company_name ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []models.Job
	err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&jobs).Error
	return jobs, total, err
}

// UpdateFields writes the given columns on a job owned by userID and returns
// the stored row. Attachment URL columns are refused.
func (r *jobRepo) UpdateFields(ctx context.Context, id, userID string, fields map[string]any) (*models.Job, error) {
	for _, s := range models.Slots {
		if _, ok := fields[s.Column()]; ok {
			return nil, ErrAttachmentColumn
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}

	var j models.Job
	res := r.db.WithContext(ctx).
		Model(&j).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrNotFound
	}
	return &j, nil
}

// SetAttachmentURL writes exactly one slot column. Other columns, including
// updated_at, are left alone.
func (r *jobRepo) SetAttachmentURL(ctx context.Context, id string, slot models.Slot, url string) error {
	if !slot.Valid() {
		return utils.E(utils.CodeInvalidArgument, "jobRepo.SetAttachmentURL", "unknown slot "+string(slot), nil)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		UpdateColumn(slot.Column(), url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// DeleteForOwner removes the job and returns the row as it was at deletion.
func (r *jobRepo) DeleteForOwner(ctx context.Context, id, userID string) (*models.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrNotFound
	}
	var j models.Job
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&j)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrNotFound
	}
	return &j, nil
}
