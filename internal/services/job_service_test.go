package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sameboat/backend/internal/logger"
	"github.com/sameboat/backend/internal/models"
	"github.com/sameboat/backend/internal/queue"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/testutil"
	"github.com/sameboat/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "11111111-1111-4111-8111-111111111111"
	bob   = "22222222-2222-4222-8222-222222222222"
)

func ptr[T any](v T) *T { return &v }

func fields() JobFields {
	return JobFields{
		JobTitle:           ptr("Go Developer"),
		CompanyName:        ptr("Globex"),
		ExperienceRequired: ptr("2+"),
	}
}

func newJobService() (JobService, *testutil.MemJobRepo, *testutil.MemQueue) {
	jobs := testutil.NewMemJobRepo()
	q := testutil.NewMemQueue()
	return NewJobService(jobs, q, 0, logger.Discard()), jobs, q
}

func TestCreateDefaults(t *testing.T) {
	svc, _, q := newJobService()
	f := fields()
	f.IsActive = ptr(false)

	j, err := svc.Create(context.Background(), alice, f, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, alice, j.UserID)
	assert.Equal(t, models.EmploymentFullTime, j.EmploymentType)
	assert.Equal(t, models.StatusSaved, j.CurrentStatus)
	assert.True(t, j.IsActive)
	assert.Empty(t, q.Tasks())
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*JobFields)
	}{
		{"missing title", func(f *JobFields) { f.JobTitle = nil }},
		{"blank company", func(f *JobFields) { f.CompanyName = ptr("  ") }},
		{"missing experience", func(f *JobFields) { f.ExperienceRequired = nil }},
		{"bad employment type", func(f *JobFields) { f.EmploymentType = ptr(models.EmploymentType("GIG")) }},
		{"bad status", func(f *JobFields) { f.CurrentStatus = ptr(models.JobStatus("GHOSTED")) }},
		{"experience too long", func(f *JobFields) { f.ExperienceRequired = ptr("more than twenty characters") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newJobService()
			f := fields()
			tt.mod(&f)
			_, err := svc.Create(context.Background(), alice, f, nil)
			assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestCreateRejectsBadAttachmentBeforeWriting(t *testing.T) {
	svc, jobs, q := newJobService()
	_, err := svc.Create(context.Background(), alice, fields(), Attachments{
		models.SlotResume: {Filename: "cv.exe", Data: []byte("MZ")},
	})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	list, _, _ := jobs.List(context.Background(), alice, pgrepo.JobFilter{})
	assert.Empty(t, list)
	assert.Empty(t, q.Tasks())
}

func TestCreateEnqueuesOneUploadPerAttachment(t *testing.T) {
	svc, _, q := newJobService()
	j, err := svc.Create(context.Background(), alice, fields(), Attachments{
		models.SlotResume:      {Filename: "cv.pdf", Data: pdfBytes},
		models.SlotCoverLetter: {Filename: "cl.txt", Data: []byte("hi")},
	})
	require.NoError(t, err)

	tasks := q.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, models.SlotResume, tasks[0].Slot)
	assert.Equal(t, models.SlotCoverLetter, tasks[1].Slot)
	for _, task := range tasks {
		assert.Equal(t, queue.KindUpload, task.Kind)
		assert.Equal(t, j.ID, task.JobID)
	}
}

func TestCreateSurvivesEnqueueFailure(t *testing.T) {
	svc, _, q := newJobService()
	q.EnqueueErr = errors.New("queue down")

	j, err := svc.Create(context.Background(), alice, fields(), Attachments{
		models.SlotResume: {Filename: "cv.pdf", Data: pdfBytes},
	})
	require.NoError(t, err)
	assert.Empty(t, j.ResumeURL)
}

func TestOtherOwnersJobIsNotFound(t *testing.T) {
	svc, _, _ := newJobService()
	ctx := context.Background()
	j, err := svc.Create(ctx, alice, fields(), nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, j.ID, bob)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	_, err = svc.Update(ctx, j.ID, bob, JobFields{JobTitle: ptr("x")}, nil)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	assert.True(t, utils.IsCode(svc.Delete(ctx, j.ID, bob), utils.CodeNotFound))

	got, err := svc.Get(ctx, j.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Go Developer", got.JobTitle)
}

func TestUpdateAppliesFieldsAndDefaultsActive(t *testing.T) {
	svc, jobs, _ := newJobService()
	ctx := context.Background()
	f := fields()
	j, err := svc.Create(ctx, alice, f, nil)
	require.NoError(t, err)
	_, err = jobs.UpdateFields(ctx, j.ID, alice, map[string]any{"is_active": false})
	require.NoError(t, err)

	got, err := svc.Update(ctx, j.ID, alice, JobFields{
		CurrentStatus: ptr(models.StatusInterview),
		Skills:        ptr([]string{"go", "sql"}),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInterview, got.CurrentStatus)
	assert.Equal(t, []string{"go", "sql"}, []string(got.Skills))
	assert.Equal(t, "Go Developer", got.JobTitle)
	assert.True(t, got.IsActive)
	assert.False(t, got.UpdatedAt.Before(j.UpdatedAt))
}

func TestUpdateKeepsExplicitInactive(t *testing.T) {
	svc, _, _ := newJobService()
	ctx := context.Background()
	j, err := svc.Create(ctx, alice, fields(), nil)
	require.NoError(t, err)

	got, err := svc.Update(ctx, j.ID, alice, JobFields{IsActive: ptr(false)}, nil)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestUpdateSkipsMalformedOldURL(t *testing.T) {
	svc, jobs, q := newJobService()
	ctx := context.Background()
	jobs.Put(models.Job{ID: "33333333-3333-4333-8333-333333333333", UserID: alice, JobTitle: "t", CompanyName: "c", ResumeURL: "::garbage"})

	_, err := svc.Update(ctx, "33333333-3333-4333-8333-333333333333", alice, JobFields{}, Attachments{
		models.SlotResume: {Filename: "cv.pdf", Data: pdfBytes},
	})
	require.NoError(t, err)
	tasks := q.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, queue.KindUpload, tasks[0].Kind)
}

func TestDeleteWithoutAttachmentsEnqueuesNothing(t *testing.T) {
	svc, _, q := newJobService()
	ctx := context.Background()
	j, err := svc.Create(ctx, alice, fields(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, j.ID, alice))
	assert.Empty(t, q.Tasks())
	_, err = svc.Get(ctx, j.ID, alice)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestList(t *testing.T) {
	svc, _, _ := newJobService()
	ctx := context.Background()

	a := fields()
	_, err := svc.Create(ctx, alice, a, nil)
	require.NoError(t, err)
	b := fields()
	b.JobTitle = ptr("Data Engineer")
	b.CurrentStatus = ptr(models.StatusApplied)
	_, err = svc.Create(ctx, alice, b, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, fields(), nil)
	require.NoError(t, err)

	all, total, err := svc.List(ctx, alice, pgrepo.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.EqualValues(t, 2, total)

	applied, _, err := svc.List(ctx, alice, pgrepo.JobFilter{Status: models.StatusApplied})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "Data Engineer", applied[0].JobTitle)

	found, _, err := svc.List(ctx, alice, pgrepo.JobFilter{Search: "data"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, _, err = svc.List(ctx, alice, pgrepo.JobFilter{Status: "NOPE"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
