package services

import (
	"context"
	"testing"

	"github.com/sameboat/backend/internal/models"
	"github.com/sameboat/backend/internal/testutil"
	"github.com/sameboat/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventServiceScopesToOwner(t *testing.T) {
	jobs := testutil.NewMemJobRepo()
	events := &testutil.MemEventRepo{}
	svc := NewEventService(events, jobs)
	ctx := context.Background()

	j := &models.Job{UserID: alice, JobTitle: "t", CompanyName: "c"}
	require.NoError(t, jobs.Create(ctx, j))
	require.NoError(t, svc.Record(ctx, &models.AttachmentEvent{JobID: j.ID, UserID: alice, Status: models.EventUploaded}))

	got, err := svc.ListForJob(ctx, j.ID, alice, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = svc.ListForJob(ctx, j.ID, bob, 10)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestEventServiceWithoutStore(t *testing.T) {
	jobs := testutil.NewMemJobRepo()
	svc := NewEventService(nil, jobs)
	ctx := context.Background()

	j := &models.Job{UserID: alice}
	require.NoError(t, jobs.Create(ctx, j))
	require.NoError(t, svc.Record(ctx, &models.AttachmentEvent{JobID: j.ID}))

	got, err := svc.ListForJob(ctx, j.ID, alice, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
