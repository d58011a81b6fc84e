package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sameboat/backend/internal/auth"
	"github.com/sameboat/backend/internal/cache"
	"github.com/sameboat/backend/internal/mailer"
	"github.com/sameboat/backend/internal/models"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/utils"
	"github.com/sirupsen/logrus"
)

type RegisterInput struct {
	UserName  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// TokenPair is the result of a login or a refresh. Refresh goes to the
// cookie, Access to the response body.
type TokenPair struct {
	Access           string
	Refresh          string
	RefreshExpiresAt time.Time
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	SendResetLink(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, uid, token, newPassword, confirmPassword string) error
}

type authService struct {
	users       pgrepo.UserRepository
	tokens      *auth.TokenManager
	revoked     cache.Cache
	mail        mailer.Mailer
	frontendURL string
	log         *logrus.Entry
}

func NewAuthService(users pgrepo.UserRepository, tokens *auth.TokenManager, revoked cache.Cache, mail mailer.Mailer, frontendURL string, log *logrus.Entry) AuthService {
	return &authService{
		users:       users,
		tokens:      tokens,
		revoked:     revoked,
		mail:        mail,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "AuthService.Register"

	in.UserName = strings.TrimSpace(in.UserName)
	in.Email = strings.TrimSpace(in.Email)
	if in.UserName == "" || in.Email == "" || in.Password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_name, email and password are required", nil)
	}
	if !strings.Contains(in.Email, "@") {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid email", nil)
	}

	hash, err := utils.HashPassword(in.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	u := &models.User{
		UserName:     in.UserName,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "user with this email or user name already exists", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}
	return u, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	const op = "AuthService.Login"

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if u == nil || !u.IsActive || !utils.CheckPassword(u.PasswordHash, password) {
		return nil, utils.E(utils.CodeUnauthorized, op, "Invalid email or password", nil)
	}
	return s.issue(op, u)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "AuthService.Refresh"

	if refreshToken == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "No refresh cookie", nil)
	}
	c, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "Invalid refresh token", err)
	}

	// Claiming the jti is the rotation: only one refresh per token succeeds.
	fresh, err := s.revoked.SetIfAbsent(ctx, cache.RevokedTokenKey(c.ID), true, time.Until(c.ExpiresAt.Time))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to rotate refresh token", err)
	}
	if !fresh {
		return nil, utils.E(utils.CodeUnauthorized, op, "Refresh token revoked", nil)
	}

	u, err := s.users.GetByID(ctx, c.Subject)
	if errors.Is(err, utils.ErrNotFound) || (err == nil && !u.IsActive) {
		return nil, utils.E(utils.CodeUnauthorized, op, "Invalid refresh token", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	return s.issue(op, u)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	const op = "AuthService.Logout"

	if refreshToken == "" {
		return nil
	}
	c, err := s.tokens.Parse(refreshToken, auth.TypeRefresh)
	if err != nil {
		return nil
	}
	if err := s.revoked.SetJSON(ctx, cache.RevokedTokenKey(c.ID), true, time.Until(c.ExpiresAt.Time)); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to revoke refresh token", err)
	}
	return nil
}

func (s *authService) SendResetLink(ctx context.Context, email string) error {
	const op = "AuthService.SendResetLink"

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, utils.ErrNotFound) {
		return utils.E(utils.CodeInvalidArgument, op, "User with this email does not exist", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load user", err)
	}

	uid, token, err := s.tokens.IssueReset(u)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to issue reset token", err)
	}
	q := url.Values{"uid": {uid}, "token": {token}}
	link := fmt.Sprintf("%s/reset_password.html?%s", s.frontendURL, q.Encode())

	body := fmt.Sprintf("Hi %s,\n\nUse the link below to reset your password. It expires in 15 minutes.\n\n%s\n", u.UserName, link)
	if err := s.mail.Send(ctx, u.Email, "Reset your password", body); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to send reset email", err)
	}
	s.log.WithField("user_id", u.ID).Info("password reset link sent")
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, uid, token, newPassword, confirmPassword string) error {
	const op = "AuthService.ResetPassword"

	if newPassword != confirmPassword {
		return utils.E(utils.CodeInvalidArgument, op, "Passwords do not match", nil)
	}
	if len(newPassword) < utils.MinPasswordLength {
		return utils.E(utils.CodeInvalidArgument, op, utils.ErrPasswordTooShort.Error(), nil)
	}

	invalid := utils.E(utils.CodeInvalidArgument, op, "Invalid or expired reset link", nil)
	id, err := auth.DecodeUID(uid)
	if err != nil {
		return invalid
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if err := s.tokens.VerifyReset(uid, token, u); err != nil {
		return invalid
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update password", err)
	}
	return nil
}

func (s *authService) issue(op string, u *models.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(u)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to issue access token", err)
	}
	refresh, c, err := s.tokens.IssueRefresh(u)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to issue refresh token", err)
	}
	return &TokenPair{Access: access, Refresh: refresh, RefreshExpiresAt: c.ExpiresAt.Time}, nil
}
