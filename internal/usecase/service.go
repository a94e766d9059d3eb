package usecase

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"provalab-api/internal/data/repository"
	"provalab-api/pkg/mailer"
	"provalab-api/pkg/oauth"
	"provalab-api/pkg/ratelimit"
	"provalab-api/pkg/token"
	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

// IdentityProvider validates an external access token.
type IdentityProvider interface {
	Authenticate(ctx context.Context, accessToken string) (*oauth.Identity, error)
}

// Dependencies is everything the services are built from. Now, Go and
// RandIntN are optional.
type Dependencies struct {
	Store  repository.Store
	Codec  *token.Codec
	Mailer mailer.Sender
	Google IdentityProvider
	Config *utils.Config
	Log    *zap.Logger

	Limiter *ratelimit.Limiter
	// Limits overrides the store's own attempt log, e.g. with Redis.
	Limits ratelimit.Store

	Now func() time.Time
	Go  func(func())
	// RandIntN picks a number in [0, n).
	RandIntN func(n int) int
}

// SetDefaults fills the optional fields.
func (d *Dependencies) SetDefaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Go == nil {
		d.Go = func(fn func()) { go fn() }
	}
	if d.RandIntN == nil {
		d.RandIntN = rand.IntN
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.New(d.Now)
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
}

// limitStore picks the rate-limit store for a unit of work.
func (d *Dependencies) limitStore(repos *repository.Repository) ratelimit.Store {
	if d.Limits != nil {
		return d.Limits
	}
	return repos.AttemptLog
}

type Service struct {
	Auth         AuthService
	Verification VerificationService
	Password     PasswordService
	Plan         PlanService
	User         UserService
	Profile      ProfileService
	Exercise     ExerciseService
	Attempt      AttemptService
}

func NewService(deps Dependencies) *Service {
	deps.SetDefaults()

	plan := NewPlanService(deps)
	verification := NewVerificationService(deps)

	return &Service{
		Auth:         NewAuthService(deps, verification, plan),
		Verification: verification,
		Password:     NewPasswordService(deps),
		Plan:         plan,
		User:         NewUserService(deps),
		Profile:      NewProfileService(deps),
		Exercise:     NewExerciseService(deps),
		Attempt:      NewAttemptService(deps),
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
