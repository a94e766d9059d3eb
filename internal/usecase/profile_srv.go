package usecase

import (
	"context"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/dto/request"
	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProfileService interface {
	GetMine(ctx context.Context, userID uuid.UUID) (*response.ProfileResponse, error)
	// UpdateMine creates the profile when it is missing.
	UpdateMine(ctx context.Context, userID uuid.UUID, req *request.UpdateProfileRequest) (*response.ProfileResponse, error)
}

type profileService struct {
	deps Dependencies
	log  *zap.Logger
}

func NewProfileService(deps Dependencies) ProfileService {
	deps.SetDefaults()
	return &profileService{
		deps: deps,
		log:  deps.Log.With(zap.String("service", "profile")),
	}
}

func (s *profileService) GetMine(ctx context.Context, userID uuid.UUID) (*response.ProfileResponse, error) {
	profile, err := s.deps.Store.Repos().Profile.FindByUserID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to get profile", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}
	if profile == nil {
		return nil, apperr.NotFound("Profile not found")
	}
	return response.ProfileToResponse(profile), nil
}

func (s *profileService) UpdateMine(ctx context.Context, userID uuid.UUID, req *request.UpdateProfileRequest) (*response.ProfileResponse, error) {
	var profile *entity.Profile
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		user, err := repos.User.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound("User not found")
		}

		now := s.deps.Now()
		if profile, err = ensureProfile(ctx, repos, user, now); err != nil {
			return err
		}
		if profile == nil {
			return repository.ErrNotFound
		}

		if req.FullName != nil {
			profile.FullName = optionalString(*req.FullName)
		}
		if req.AvatarURL != nil {
			profile.AvatarURL = optionalString(*req.AvatarURL)
		}
		profile.UpdatedAt = now

		return repos.Profile.Update(ctx, profile)
	})
	if err != nil {
		if isDomain(err) {
			return nil, err
		}
		s.log.Error("Failed to update profile", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}

	s.log.Info("Profile updated", zap.String("user_id", userID.String()))
	return response.ProfileToResponse(profile), nil
}
