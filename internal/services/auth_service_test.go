package services

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/auth"
	"github.com/sameboat/backend/internal/logger"
	"github.com/sameboat/backend/internal/testutil"
	"github.com/sameboat/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc    AuthService
	users  *testutil.MemUserRepo
	cache  *testutil.MemCache
	outbox *testutil.Outbox
	tokens *auth.TokenManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tm, err := auth.NewTokenManager(config.JWTConfig{
		Secret:     "s3cret",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		ResetTTL:   15 * time.Minute,
	})
	require.NoError(t, err)
	f := &authFixture{
		users:  testutil.NewMemUserRepo(),
		cache:  testutil.NewMemCache(),
		outbox: &testutil.Outbox{},
		tokens: tm,
	}
	f.svc = NewAuthService(f.users, tm, f.cache, f.outbox, "https://app.sameboat.dev/", logger.Discard())
	return f
}

func (f *authFixture) register(t *testing.T) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), RegisterInput{
		UserName: "ana", FirstName: "Ana", Email: "Ana@Example.com", Password: "correct horse",
	})
	require.NoError(t, err)
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{UserName: "ana", Email: "ana@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.True(t, u.IsActive)

	_, err = f.svc.Register(ctx, RegisterInput{UserName: "ana2", Email: "ANA@example.com", Password: "correct horse"})
	assert.True(t, utils.IsCode(err, utils.CodeConflict))

	_, err = f.svc.Register(ctx, RegisterInput{UserName: "bo", Email: "bo@example.com", Password: "short"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.svc.Register(ctx, RegisterInput{UserName: "cy", Email: "not-an-email", Password: "long enough"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)
	c, err := f.tokens.Parse(pair.Access, auth.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user", c.Role)
	assert.True(t, pair.RefreshExpiresAt.After(time.Now()))

	for _, pw := range []string{"wrong password", ""} {
		_, err = f.svc.Login(ctx, "ana@example.com", pw)
		assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
	}
	_, err = f.svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}

func TestRefreshRotates(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, next.Refresh)

	_, err = f.svc.Refresh(ctx, pair.Refresh)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized), "old refresh token must be revoked")

	_, err = f.svc.Refresh(ctx, next.Refresh)
	assert.NoError(t, err)
}

func TestRefreshRejects(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, "")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
	_, err = f.svc.Refresh(ctx, pair.Access)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
}

func TestLogoutRevokes(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	ctx := context.Background()
	pair, err := f.svc.Login(ctx, "ana@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.Refresh))
	_, err = f.svc.Refresh(ctx, pair.Refresh)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	assert.NoError(t, f.svc.Logout(ctx, ""))
	assert.NoError(t, f.svc.Logout(ctx, "garbage"))
}

func TestPasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t)
	ctx := context.Background()

	err := f.svc.SendResetLink(ctx, "missing@example.com")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	require.NoError(t, f.svc.SendResetLink(ctx, "ana@example.com"))
	mail, ok := f.outbox.Last()
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", mail.To)

	var link string
	for _, line := range strings.Split(mail.Body, "\n") {
		if strings.HasPrefix(line, "https://") {
			link = line
		}
	}
	require.True(t, strings.HasPrefix(link, "https://app.sameboat.dev/reset_password.html?"), link)
	u, err := url.Parse(link)
	require.NoError(t, err)
	uid, token := u.Query().Get("uid"), u.Query().Get("token")

	err = f.svc.ResetPassword(ctx, uid, token, "new password", "other password")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	err = f.svc.ResetPassword(ctx, uid, token, "short", "short")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	require.NoError(t, f.svc.ResetPassword(ctx, uid, token, "new password", "new password"))

	_, err = f.svc.Login(ctx, "ana@example.com", "correct horse")
	assert.Error(t, err)
	_, err = f.svc.Login(ctx, "ana@example.com", "new password")
	assert.NoError(t, err)

	// the link is single use
	err = f.svc.ResetPassword(ctx, uid, token, "third password", "third password")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
