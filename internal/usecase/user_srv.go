package usecase

import (
	"context"

	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService interface {
	Me(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error)
}

type userService struct {
	deps Dependencies
	log  *zap.Logger
}

func NewUserService(deps Dependencies) UserService {
	deps.SetDefaults()
	return &userService{
		deps: deps,
		log:  deps.Log.With(zap.String("service", "user")),
	}
}

func (s *userService) Me(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error) {
	user, err := s.deps.Store.Repos().User.FindByID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to get user", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}
