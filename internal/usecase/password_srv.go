package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/dto/request"
	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/mailer"
	"provalab-api/pkg/ratelimit"
	"provalab-api/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	resetTokenBytes = 32

	GenericResetMessage = "If the email is registered, we'll send reset instructions"
	PasswordResetDone   = "Password updated successfully"
)

type PasswordService interface {
	// RequestReset always returns the same message. Failures are logged only.
	RequestReset(ctx context.Context, req *request.ForgotPasswordRequest, ip string) *response.MessageResponse
	ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) (*response.MessageResponse, error)
}

type passwordService struct {
	deps Dependencies
	log  *zap.Logger
}

func NewPasswordService(deps Dependencies) PasswordService {
	deps.SetDefaults()
	return &passwordService{
		deps: deps,
		log:  deps.Log.With(zap.String("service", "password")),
	}
}

type resetMail struct {
	userID uuid.UUID
	msg    mailer.Message
}

func (s *passwordService) RequestReset(ctx context.Context, req *request.ForgotPasswordRequest, ip string) *response.MessageResponse {
	generic := &response.MessageResponse{Message: GenericResetMessage}
	email := utils.NormalizeEmail(req.Email)

	mail, store, err := s.issue(ctx, email, ip)
	switch {
	case apperr.Is(err, apperr.KindRateLimited):
		s.log.Warn("Password reset rate limited", zap.String("email", email), zap.String("ip", ip))
		return generic
	case err != nil:
		s.log.Error("Failed to issue password reset", zap.Error(err), zap.String("email", email))
		return generic
	case mail == nil:
		s.log.Info("Password reset requested for unknown email", zap.String("email", email))
		return generic
	}

	if store != nil {
		if err := store.Record(ctx, ratelimit.KindPasswordReset, mail.userID, ip, s.deps.Now()); err != nil {
			s.log.Warn("Failed to record rate limit entry", zap.Error(err))
		}
	}

	s.deps.Go(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), s.deps.Config.Email.Timeout())
		defer cancel()
		if err := s.deps.Mailer.Send(sendCtx, mail.msg); err != nil {
			s.log.Error("Failed to send password reset email", zap.Error(err), zap.String("user_id", mail.userID.String()))
		}
	})

	return generic
}

func (s *passwordService) issue(ctx context.Context, email, ip string) (*resetMail, ratelimit.Store, error) {
	var (
		mail  *resetMail
		store ratelimit.Store
	)
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		found, err := repos.User.FindByEmail(ctx, email)
		if err != nil || found == nil {
			return err
		}
		// serialize concurrent requests for the same account
		user, err := repos.User.FindByIDForUpdate(ctx, found.ID)
		if err != nil || user == nil {
			return err
		}

		store = s.deps.limitStore(repos)
		err = s.deps.Limiter.Check(ctx, store, ratelimit.KindPasswordReset, user.ID, ip, ratelimit.Policy{
			MaxPerHour: s.deps.Config.PasswordReset.MaxPerHour,
		})
		if err != nil {
			return err
		}

		now := s.deps.Now()
		if _, err := repos.PasswordReset.InvalidateActive(ctx, user.ID, now); err != nil {
			return err
		}

		raw, err := utils.GenerateURLToken(resetTokenBytes)
		if err != nil {
			return err
		}

		ttl := s.deps.Config.PasswordReset.TTL()
		err = repos.PasswordReset.Create(ctx, &entity.PasswordResetToken{
			BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
			UserID:     user.ID,
			TokenHash:  s.deps.Codec.HashSecret(raw),
			RequestIP:  optionalString(ip),
			ExpiresAt:  now.Add(ttl),
		})
		if err != nil {
			return err
		}

		name := ""
		if user.FullName != nil {
			name = *user.FullName
		}
		link := s.deps.Config.App.FrontendURL + "/reset-password?token=" + url.QueryEscape(raw)
		mail = &resetMail{
			userID: user.ID,
			msg:    mailer.PasswordResetEmail(user.Email, name, link, ttl),
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return mail, store, nil
}

func (s *passwordService) ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) (*response.MessageResponse, error) {
	minLen := s.deps.Config.PasswordReset.MinPasswordLen
	if len(req.NewPassword) < minLen {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minLen))
	}

	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		return nil, apperr.ErrInvalidOrExpired
	}

	// bcrypt is slow, keep it outside the row lock
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	var userID uuid.UUID
	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		tok, err := repos.PasswordReset.FindByHashForUpdate(ctx, s.deps.Codec.HashSecret(raw))
		if err != nil {
			return err
		}
		now := s.deps.Now()
		if tok == nil || !tok.Usable(now) {
			return apperr.ErrInvalidOrExpired
		}

		if _, err := repos.PasswordReset.InvalidateActive(ctx, tok.UserID, now); err != nil {
			return err
		}
		if err := repos.User.UpdatePassword(ctx, tok.UserID, hash, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrInvalidOrExpired
			}
			return err
		}
		userID = tok.UserID
		return nil
	})
	if err != nil {
		if isDomain(err) {
			return nil, err
		}
		s.log.Error("Failed to reset password", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	s.log.Info("Password reset", zap.String("user_id", userID.String()))
	return &response.MessageResponse{Message: PasswordResetDone}, nil
}
