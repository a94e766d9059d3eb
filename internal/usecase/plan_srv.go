package usecase

import (
	"context"
	"strings"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentOutcome says what ApplyPaymentEvent did with a notification.
type PaymentOutcome string

const (
	PaymentApplied      PaymentOutcome = "applied"
	PaymentUnknownEvent PaymentOutcome = "unknown_event"
	PaymentMissingEmail PaymentOutcome = "email_not_found"
	PaymentUnknownUser  PaymentOutcome = "user_not_found"
)

type PlanService interface {
	// EnsurePlanProfile runs inside the caller's transaction and returns the
	// locked row.
	EnsurePlanProfile(ctx context.Context, repos *repository.Repository, user *entity.User) (*entity.PlanProfile, error)
	CheckAndConsume(ctx context.Context, userID uuid.UUID, increment bool) (*response.PlanResponse, error)
	ApplyPaymentEvent(ctx context.Context, email string, kind entity.PaymentEvent, purchaseID string) (PaymentOutcome, error)
	GetPlan(ctx context.Context, userID uuid.UUID) (*response.PlanResponse, error)
}

type planService struct {
	deps Dependencies
	log  *zap.Logger
}

func NewPlanService(deps Dependencies) PlanService {
	deps.SetDefaults()
	return &planService{
		deps: deps,
		log:  deps.Log.With(zap.String("service", "plan")),
	}
}

func (s *planService) checkoutURL() string {
	return s.deps.Config.Plan.CheckoutURL
}

func (s *planService) EnsurePlanProfile(ctx context.Context, repos *repository.Repository, user *entity.User) (*entity.PlanProfile, error) {
	now := s.deps.Now()
	err := repos.PlanProfile.Create(ctx, &entity.PlanProfile{
		Base:     entity.Base{ID: user.ID, CreatedAt: now, UpdatedAt: now},
		Email:    user.Email,
		Plan:     entity.PlanFree,
		FreeUses: s.deps.Config.Plan.FreeUses,
	})
	if err != nil {
		return nil, err
	}

	plan, err := repos.PlanProfile.FindByUserIDForUpdate(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, repository.ErrNotFound
	}

	if !strings.EqualFold(plan.Email, user.Email) {
		plan.Email = user.Email
		plan.UpdatedAt = now
		if err := repos.PlanProfile.Update(ctx, plan); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// CheckAndConsume refuses before incrementing, so uses_count never passes
// free_uses.
func (s *planService) CheckAndConsume(ctx context.Context, userID uuid.UUID, increment bool) (*response.PlanResponse, error) {
	var plan *entity.PlanProfile
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		user, err := repos.User.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound("User not found")
		}

		plan, err = s.EnsurePlanProfile(ctx, repos, user)
		if err != nil {
			return err
		}

		if plan.LimitReached() {
			return apperr.FreeLimitReached(s.checkoutURL())
		}

		if increment && plan.Plan == entity.PlanFree {
			plan.UsesCount, err = repos.PlanProfile.IncrementUses(ctx, userID, s.deps.Now())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindFreeLimitReached) {
			s.log.Info("Free limit reached", zap.String("user_id", userID.String()))
			return nil, err
		}
		if isDomain(err) {
			return nil, err
		}
		s.log.Error("Failed to check plan", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}

	resp := response.PlanToResponse(plan, s.checkoutURL())
	return &resp, nil
}

// ApplyPaymentEvent is idempotent: each event sets absolute values.
func (s *planService) ApplyPaymentEvent(ctx context.Context, email string, kind entity.PaymentEvent, purchaseID string) (PaymentOutcome, error) {
	if !kind.Valid() {
		return PaymentUnknownEvent, nil
	}

	email = utils.NormalizeEmail(email)
	if email == "" {
		s.log.Warn("Payment event without buyer email", zap.String("event", string(kind)))
		return PaymentMissingEmail, nil
	}

	outcome := PaymentApplied
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		user, err := repos.User.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user == nil {
			outcome = PaymentUnknownUser
			return nil
		}

		plan, err := s.EnsurePlanProfile(ctx, repos, user)
		if err != nil {
			return err
		}

		switch kind {
		case entity.PaymentApproved:
			plan.Plan = entity.PlanPremium
			// an approval without a transaction id keeps the one on file
			if id := optionalString(purchaseID); id != nil {
				plan.PurchaseID = id
			}
		case entity.PaymentCanceled:
			plan.Plan = entity.PlanFree
			plan.UsesCount = plan.FreeUses
			plan.PurchaseID = nil
		case entity.PaymentUnknown:
			return nil
		}
		plan.UpdatedAt = s.deps.Now()

		return repos.PlanProfile.Update(ctx, plan)
	})
	if err != nil {
		s.log.Error("Failed to apply payment event", zap.Error(err), zap.String("email", email), zap.String("event", string(kind)))
		return "", apperr.Internal(err)
	}

	if outcome == PaymentUnknownUser {
		s.log.Warn("Payment event ignored, user not found", zap.String("email", email), zap.String("event", string(kind)))
		return outcome, nil
	}

	s.log.Info("Payment event applied", zap.String("email", email), zap.String("event", string(kind)))
	return outcome, nil
}

func (s *planService) GetPlan(ctx context.Context, userID uuid.UUID) (*response.PlanResponse, error) {
	var plan *entity.PlanProfile
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		user, err := repos.User.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound("User not found")
		}
		plan, err = s.EnsurePlanProfile(ctx, repos, user)
		return err
	})
	if err != nil {
		if isDomain(err) {
			return nil, err
		}
		s.log.Error("Failed to load plan", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, apperr.Internal(err)
	}

	resp := response.PlanToResponse(plan, s.checkoutURL())
	return &resp, nil
}
