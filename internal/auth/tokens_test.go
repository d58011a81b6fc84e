package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sameboat/backend/config"
	"github.com/sameboat/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(config.JWTConfig{
		Secret:     "test-secret",
		Issuer:     "sameboat",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		ResetTTL:   15 * time.Minute,
	})
	require.NoError(t, err)
	return m
}

func TestNewTokenManagerNeedsSecret(t *testing.T) {
	_, err := NewTokenManager(config.JWTConfig{})
	assert.Error(t, err)
}

func TestAccessTokenCarriesRole(t *testing.T) {
	m := newManager(t)

	tests := []struct {
		name string
		user models.User
		role string
	}{
		{"regular user", models.User{ID: "u1"}, "user"},
		{"staff user", models.User{ID: "u2", IsStaff: true}, "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := m.IssueAccess(&tt.user)
			require.NoError(t, err)
			c, err := m.Parse(raw, TypeAccess)
			require.NoError(t, err)
			assert.Equal(t, tt.user.ID, c.Subject)
			assert.Equal(t, tt.role, c.Role)
		})
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	m := newManager(t)
	raw, _, err := m.IssueRefresh(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = m.Parse(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	c, err := m.Parse(raw, TypeRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
}

func TestParseRejectsExpired(t *testing.T) {
	m := newManager(t)
	raw, err := m.IssueAccess(&models.User{ID: "u1"})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = m.Parse(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	m := newManager(t)
	c := m.claims("u1", TypeAccess, time.Minute)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString(m.secret)
	require.NoError(t, err)

	_, err = m.Parse(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetTokenDiesWithPasswordChange(t *testing.T) {
	m := newManager(t)
	u := &models.User{ID: "7f1c2a9e-8d2b-4c61-9d0e-1a2b3c4d5e6f", PasswordHash: "old-hash"}

	uid, token, err := m.IssueReset(u)
	require.NoError(t, err)

	id, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	require.NoError(t, m.VerifyReset(uid, token, u))

	u.PasswordHash = "new-hash"
	assert.ErrorIs(t, m.VerifyReset(uid, token, u), ErrInvalidToken)
}

func TestResetTokenBoundToUID(t *testing.T) {
	m := newManager(t)
	a := &models.User{ID: "a", PasswordHash: "h"}
	b := &models.User{ID: "b", PasswordHash: "h"}

	_, token, err := m.IssueReset(a)
	require.NoError(t, err)
	assert.ErrorIs(t, m.VerifyReset(EncodeUID(b.ID), token, b), ErrInvalidToken)
}

func TestDecodeUIDRejectsGarbage(t *testing.T) {
	_, err := DecodeUID("!!")
	assert.Error(t, err)
	_, err = DecodeUID("")
	assert.Error(t, err)
}
