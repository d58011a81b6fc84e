package services

import (
	"context"
	"errors"

	"github.com/sameboat/backend/internal/models"
	pgrepo "github.com/sameboat/backend/internal/repositories/postgres"
	"github.com/sameboat/backend/internal/utils"
)

type UserService interface {
	Me(ctx context.Context, userID string) (*models.User, error)
}

type userService struct {
	users pgrepo.UserRepository
}

func NewUserService(users pgrepo.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) Me(ctx context.Context, userID string) (*models.User, error) {
	const op = "UserService.Me"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		// token outlived its account
		return nil, utils.E(utils.CodeUnauthorized, op, "user no longer exists", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if !u.IsActive {
		return nil, utils.E(utils.CodeForbidden, op, "account is disabled", nil)
	}
	return u, nil
}
