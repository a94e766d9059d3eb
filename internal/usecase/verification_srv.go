package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/dto/request"
	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/mailer"
	"provalab-api/pkg/ratelimit"
	"provalab-api/pkg/token"
	"provalab-api/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	codeLength = 6

	GenericResendMessage = "If the request is still valid, we'll send a new code shortly"
	ResendSentMessage    = "A new code has been sent"
)

// Challenge is a freshly issued verification code. Code is the raw value and
// must only leave the process by email.
type Challenge struct {
	UserID       uuid.UUID
	Email        string
	Name         string
	CodeID       uuid.UUID
	Code         string
	PendingToken string
	TTL          time.Duration
}

type VerificationService interface {
	// Issue runs inside the caller's transaction.
	Issue(ctx context.Context, repos *repository.Repository, user *entity.User, ip string) (*Challenge, error)
	IssueMagicLink(userID, codeID uuid.UUID) (string, error)
	SendChallenge(ctx context.Context, ch *Challenge) error
	Resend(ctx context.Context, pendingToken, ip string) (*response.ResendCodeResponse, error)
	RedeemCode(ctx context.Context, req *request.VerifyEmailCodeRequest) (*response.TokenResponse, error)
	RedeemMagicLink(ctx context.Context, magicToken string) (*response.TokenResponse, error)
}

type verificationService struct {
	deps Dependencies
	log  *zap.Logger
}

func NewVerificationService(deps Dependencies) VerificationService {
	deps.SetDefaults()
	return &verificationService{
		deps: deps,
		log:  deps.Log.With(zap.String("service", "verification")),
	}
}

func (s *verificationService) ttl() time.Duration {
	return s.deps.Config.Verification.TTL()
}

func (s *verificationService) Issue(ctx context.Context, repos *repository.Repository, user *entity.User, ip string) (*Challenge, error) {
	now := s.deps.Now()

	if _, err := repos.VerificationCode.InvalidateActive(ctx, user.ID, now); err != nil {
		return nil, err
	}

	raw, err := utils.GenerateOTP(codeLength)
	if err != nil {
		return nil, err
	}

	code := &entity.VerificationCode{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		UserID:     user.ID,
		CodeHash:   s.deps.Codec.HashSecret(raw),
		RequestIP:  optionalString(ip),
		ExpiresAt:  now.Add(s.ttl()),
	}
	if err := repos.VerificationCode.Create(ctx, code); err != nil {
		return nil, err
	}

	pending, _, err := s.deps.Codec.Sign(token.Payload{
		Subject:            user.ID,
		Scope:              token.ScopeEmailVerification,
		VerificationCodeID: code.ID,
	}, s.ttl())
	if err != nil {
		return nil, fmt.Errorf("sign pending token: %w", err)
	}

	name := ""
	if user.FullName != nil {
		name = *user.FullName
	}

	return &Challenge{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         name,
		CodeID:       code.ID,
		Code:         raw,
		PendingToken: pending,
		TTL:          s.ttl(),
	}, nil
}

// IssueMagicLink returns the full frontend URL for the code's magic link.
func (s *verificationService) IssueMagicLink(userID, codeID uuid.UUID) (string, error) {
	magic, _, err := s.deps.Codec.Sign(token.Payload{
		Subject:            userID,
		Scope:              token.ScopeEmailMagicLink,
		VerificationCodeID: codeID,
	}, s.ttl())
	if err != nil {
		return "", fmt.Errorf("sign magic token: %w", err)
	}
	return s.deps.Config.App.FrontendURL + "/verify-email?magic_token=" + url.QueryEscape(magic), nil
}

func (s *verificationService) SendChallenge(ctx context.Context, ch *Challenge) error {
	link, err := s.IssueMagicLink(ch.UserID, ch.CodeID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.deps.Config.Email.Timeout())
	defer cancel()

	msg := mailer.VerificationEmail(ch.Email, ch.Name, ch.Code, link, ch.TTL)
	if err := s.deps.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// Resend answers with the generic message whenever the token is unusable
// or the account is already verified, so callers learn nothing about it.
func (s *verificationService) Resend(ctx context.Context, pendingToken, ip string) (*response.ResendCodeResponse, error) {
	generic := &response.ResendCodeResponse{Message: GenericResendMessage}

	payload, ok := s.deps.Codec.VerifyScope(strings.TrimSpace(pendingToken), token.ScopeEmailVerification)
	if !ok {
		return generic, nil
	}

	var (
		ch    *Challenge
		store ratelimit.Store
	)
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		user, err := repos.User.FindByIDForUpdate(ctx, payload.Subject)
		if err != nil {
			return err
		}
		if user == nil || user.EmailVerified {
			return nil
		}

		store = s.deps.limitStore(repos)
		err = s.deps.Limiter.Check(ctx, store, ratelimit.KindEmailVerification, user.ID, ip, ratelimit.Policy{
			MaxPerHour: s.deps.Config.Verification.ResendMaxPerHour,
			Cooldown:   s.deps.Config.Verification.ResendCooldown(),
		})
		if err != nil {
			return err
		}

		ch, err = s.Issue(ctx, repos, user, ip)
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.KindRateLimited) {
			s.log.Warn("Resend rate limited", zap.String("user_id", payload.Subject.String()), zap.String("ip", ip))
			return nil, err
		}
		s.log.Error("Failed to resend code", zap.Error(err), zap.String("user_id", payload.Subject.String()))
		return nil, apperr.Internal(err)
	}
	if ch == nil {
		return generic, nil
	}

	s.record(ctx, store, ratelimit.KindEmailVerification, ch.UserID, ip)

	if err := s.SendChallenge(ctx, ch); err != nil {
		s.log.Error("Failed to deliver resent code", zap.Error(err), zap.String("user_id", ch.UserID.String()))
		return nil, apperr.Unavailable("Could not send a new code. Try again shortly", err)
	}

	s.log.Info("Verification code resent", zap.String("user_id", ch.UserID.String()))
	return &response.ResendCodeResponse{
		Message:              ResendSentMessage,
		PendingToken:         ch.PendingToken,
		Email:                ch.Email,
		CodeExpiresInSeconds: int(ch.TTL / time.Second),
	}, nil
}

func (s *verificationService) record(ctx context.Context, store ratelimit.Store, kind ratelimit.Kind, userID uuid.UUID, ip string) {
	if store == nil {
		return
	}
	if err := store.Record(ctx, kind, userID, ip, s.deps.Now()); err != nil {
		s.log.Warn("Failed to record rate limit entry", zap.Error(err), zap.String("kind", string(kind)))
	}
}

// RedeemCode commits the attempt counter even when the code is wrong, so
// the failure is carried out of the transaction in outcome.
func (s *verificationService) RedeemCode(ctx context.Context, req *request.VerifyEmailCodeRequest) (*response.TokenResponse, error) {
	payload, ok := s.deps.Codec.VerifyScope(strings.TrimSpace(req.PendingToken), token.ScopeEmailVerification)
	if !ok {
		return nil, apperr.Unauthorized("Invalid or expired verification token")
	}

	code := strings.TrimSpace(req.Code)
	maxAttempts := s.deps.Config.Verification.MaxAttempts

	var outcome error
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		vc, err := repos.VerificationCode.FindForUpdate(ctx, payload.VerificationCodeID, payload.Subject)
		if err != nil {
			return err
		}
		if vc == nil || !vc.Usable(s.deps.Now(), maxAttempts) {
			outcome = apperr.ErrInvalidOrExpired
			return nil
		}

		if !utils.IsDigits(code, codeLength) {
			outcome = apperr.Validation("Code must be exactly 6 digits")
			return nil
		}

		if !s.deps.Codec.EqualHash(s.deps.Codec.HashSecret(code), vc.CodeHash) {
			attempts, err := repos.VerificationCode.IncrementAttempts(ctx, vc.ID)
			if err != nil {
				return err
			}
			if attempts >= maxAttempts {
				outcome = apperr.RateLimited("Too many wrong codes. Request a new one", 0)
			} else {
				outcome = apperr.ErrInvalidCode
			}
			return nil
		}

		outcome = s.consume(ctx, repos, vc)
		if outcome != nil && !isDomain(outcome) {
			return outcome
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to redeem code", zap.Error(err), zap.String("user_id", payload.Subject.String()))
		return nil, apperr.Internal(err)
	}
	if outcome != nil {
		s.log.Warn("Code redemption rejected", zap.String("user_id", payload.Subject.String()), zap.Error(outcome))
		return nil, outcome
	}

	return s.session(payload.Subject)
}

func (s *verificationService) RedeemMagicLink(ctx context.Context, magicToken string) (*response.TokenResponse, error) {
	payload, ok := s.deps.Codec.VerifyScope(strings.TrimSpace(magicToken), token.ScopeEmailMagicLink)
	if !ok {
		return nil, apperr.Unauthorized("Invalid or expired verification link")
	}

	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		vc, err := repos.VerificationCode.FindForUpdate(ctx, payload.VerificationCodeID, payload.Subject)
		if err != nil {
			return err
		}
		if vc == nil || !vc.Usable(s.deps.Now(), s.deps.Config.Verification.MaxAttempts) {
			return apperr.ErrInvalidOrExpired
		}
		return s.consume(ctx, repos, vc)
	})
	if err != nil {
		if isDomain(err) {
			s.log.Warn("Magic link rejected", zap.String("user_id", payload.Subject.String()), zap.Error(err))
			return nil, err
		}
		s.log.Error("Failed to redeem magic link", zap.Error(err), zap.String("user_id", payload.Subject.String()))
		return nil, apperr.Internal(err)
	}

	return s.session(payload.Subject)
}

// consume is the shared success path of both redemption routes.
func (s *verificationService) consume(ctx context.Context, repos *repository.Repository, vc *entity.VerificationCode) error {
	now := s.deps.Now()
	if err := repos.VerificationCode.MarkConsumed(ctx, vc.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrInvalidOrExpired
		}
		return err
	}
	if err := repos.User.MarkEmailVerified(ctx, vc.UserID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.ErrInvalidOrExpired
		}
		return err
	}
	s.log.Info("Email verified", zap.String("user_id", vc.UserID.String()))
	return nil
}

func (s *verificationService) session(userID uuid.UUID) (*response.TokenResponse, error) {
	return signSession(s.deps, userID)
}

func signSession(deps Dependencies, userID uuid.UUID) (*response.TokenResponse, error) {
	raw, expiresAt, err := deps.Codec.Sign(token.Payload{
		Subject: userID,
		Scope:   token.ScopeSession,
	}, deps.Config.JWT.SessionTTL())
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("sign session: %w", err))
	}
	resp := response.NewTokenResponse(raw, expiresAt)
	return &resp, nil
}

func isDomain(err error) bool {
	_, ok := apperr.As(err)
	return ok
}
