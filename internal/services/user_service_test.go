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

func TestUserServiceMe(t *testing.T) {
	ctx := context.Background()
	users := testutil.NewMemUserRepo()
	svc := NewUserService(users)

	active := &models.User{UserName: "ana", Email: "ana@example.com", IsActive: true}
	disabled := &models.User{UserName: "bo", Email: "bo@example.com"}
	require.NoError(t, users.Create(ctx, active))
	require.NoError(t, users.Create(ctx, disabled))

	u, err := svc.Me(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", u.UserName)

	_, err = svc.Me(ctx, disabled.ID)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	_, err = svc.Me(ctx, "missing")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	_, err = svc.Me(ctx, "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
