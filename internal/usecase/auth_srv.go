package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/data/repository"
	"provalab-api/internal/dto/request"
	"provalab-api/internal/dto/response"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/ratelimit"
	"provalab-api/pkg/token"
	"provalab-api/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	Signup(ctx context.Context, req *request.SignupRequest) (*response.AuthResponse, error)
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	StartGoogleAuth(ctx context.Context, req *request.GoogleAuthRequest, ip string) (*response.GoogleAuthResponse, error)
}

type authService struct {
	deps         Dependencies
	verification VerificationService
	plan         PlanService
	log          *zap.Logger
}

func NewAuthService(deps Dependencies, verification VerificationService, plan PlanService) AuthService {
	deps.SetDefaults()
	return &authService{
		deps:         deps,
		verification: verification,
		plan:         plan,
		log:          deps.Log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Signup(ctx context.Context, req *request.SignupRequest) (*response.AuthResponse, error) {
	// 1. Normalisasi & cek password
	email := utils.NormalizeEmail(req.Email)
	if req.Password != req.ConfirmPassword {
		return nil, apperr.Validation("Passwords do not match")
	}
	if minLen := s.deps.Config.PasswordReset.MinPasswordLen; len(req.Password) < minLen {
		return nil, apperr.Validation(fmt.Sprintf("Password must be at least %d characters", minLen))
	}

	// 2. Existing account: resume or refuse
	existing, err := s.deps.Store.Repos().User.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("Failed to check email", zap.Error(err), zap.String("email", email))
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		return s.resumeSignup(ctx, existing, req.Password)
	}

	// 3. Hash password
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	// 4. User, profile & plan in one transaction
	now := s.deps.Now()
	user := &entity.User{
		Base:          entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Email:         email,
		FullName:      trimmed(req.FullName),
		PasswordHash:  &hash,
		EmailVerified: true,
	}

	var profile *entity.Profile
	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		if err := repos.User.Create(ctx, user); err != nil {
			return err
		}
		if profile, err = s.ensureProfile(ctx, repos, user); err != nil {
			return err
		}
		_, err := s.plan.EnsurePlanProfile(ctx, repos, user)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ErrDuplicateEmail
		}
		s.log.Error("Failed to create account", zap.Error(err), zap.String("email", email))
		return nil, apperr.Internal(err)
	}

	s.log.Info("User signed up", zap.String("user_id", user.ID.String()), zap.String("email", email))
	return s.authResponse(user, profile)
}

// resumeSignup lets an unverified password account finish signing up when
// the same password is presented again.
func (s *authService) resumeSignup(ctx context.Context, existing *entity.User, password string) (*response.AuthResponse, error) {
	if !existing.HasPassword() {
		return nil, apperr.ErrLinkedToExternal
	}
	if existing.EmailVerified || !utils.CheckPasswordHash(password, *existing.PasswordHash) {
		return nil, apperr.ErrDuplicateEmail
	}

	var (
		user    *entity.User
		profile *entity.Profile
	)
	err := s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		var err error
		if err = repos.User.MarkEmailVerified(ctx, existing.ID, s.deps.Now()); err != nil {
			return err
		}
		if user, err = repos.User.FindByIDForUpdate(ctx, existing.ID); err != nil {
			return err
		}
		if user == nil {
			return repository.ErrNotFound
		}
		if profile, err = s.ensureProfile(ctx, repos, user); err != nil {
			return err
		}
		_, err = s.plan.EnsurePlanProfile(ctx, repos, user)
		return err
	})
	if err != nil {
		s.log.Error("Failed to resume signup", zap.Error(err), zap.String("user_id", existing.ID.String()))
		return nil, apperr.Internal(err)
	}

	s.log.Info("Signup resumed", zap.String("user_id", user.ID.String()))
	return s.authResponse(user, profile)
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	// 1. Find user
	email := utils.NormalizeEmail(req.Email)
	repos := s.deps.Store.Repos()

	user, err := repos.User.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("Failed to find user", zap.Error(err), zap.String("email", email))
		return nil, apperr.Internal(err)
	}

	// 2. Unknown email costs the same as a wrong password
	if user == nil {
		utils.BurnPasswordCheck(req.Password)
		s.log.Warn("Login for unknown email", zap.String("email", email))
		return nil, apperr.ErrInvalidCredentials
	}

	// 3. Google-only account
	if !user.HasPassword() {
		utils.BurnPasswordCheck(req.Password)
		return nil, apperr.ErrLinkedToExternal
	}

	// 4. Check password
	if !utils.CheckPasswordHash(req.Password, *user.PasswordHash) {
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, apperr.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, apperr.ErrEmailNotVerified
	}

	profile, err := repos.Profile.FindByUserID(ctx, user.ID)
	if err != nil {
		s.log.Error("Failed to load profile", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, apperr.Internal(err)
	}

	s.log.Info("User logged in", zap.String("user_id", user.ID.String()))
	return s.authResponse(user, profile)
}

// StartGoogleAuth never hands out a session. It always ends with a fresh
// verification code so the local mailbox is proven.
func (s *authService) StartGoogleAuth(ctx context.Context, req *request.GoogleAuthRequest, ip string) (*response.GoogleAuthResponse, error) {
	// 1. Validate token with Google
	identity, err := s.deps.Google.Authenticate(ctx, strings.TrimSpace(req.AccessToken))
	if err != nil {
		if isDomain(err) {
			s.log.Warn("Google token rejected", zap.Error(err))
			return nil, err
		}
		s.log.Error("Google validation failed", zap.Error(err))
		return nil, apperr.Unavailable("Google is unavailable. Try again shortly", err)
	}

	email := utils.NormalizeEmail(identity.Email)

	// 2. Find-or-create, link, issue code
	var (
		ch    *Challenge
		store ratelimit.Store
	)
	err = s.deps.Store.WithTx(ctx, func(ctx context.Context, repos *repository.Repository) error {
		user, err := s.linkGoogleUser(ctx, repos, email, identity.ExternalID, identity.Name)
		if err != nil {
			return err
		}
		if _, err := s.ensureProfile(ctx, repos, user); err != nil {
			return err
		}
		if _, err := s.plan.EnsurePlanProfile(ctx, repos, user); err != nil {
			return err
		}

		store = s.deps.limitStore(repos)
		err = s.deps.Limiter.Check(ctx, store, ratelimit.KindEmailVerification, user.ID, ip, ratelimit.Policy{
			MaxPerHour: s.deps.Config.Verification.ResendMaxPerHour,
		})
		if err != nil {
			return err
		}

		ch, err = s.verification.Issue(ctx, repos, user, ip)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("Account is being created. Try again")
		}
		if isDomain(err) {
			s.log.Warn("Google sign-in refused", zap.Error(err), zap.String("email", email))
			return nil, err
		}
		s.log.Error("Failed to start Google sign-in", zap.Error(err), zap.String("email", email))
		return nil, apperr.Internal(err)
	}

	if store != nil {
		if err := store.Record(ctx, ratelimit.KindEmailVerification, ch.UserID, ip, s.deps.Now()); err != nil {
			s.log.Warn("Failed to record rate limit entry", zap.Error(err))
		}
	}

	// 3. Email dikirim di background
	s.deps.Go(func() {
		if err := s.verification.SendChallenge(context.Background(), ch); err != nil {
			s.log.Error("Failed to send verification email", zap.Error(err), zap.String("user_id", ch.UserID.String()))
		}
	})

	s.log.Info("Google sign-in started", zap.String("user_id", ch.UserID.String()))
	return &response.GoogleAuthResponse{
		PendingToken:         ch.PendingToken,
		PendingTokenType:     string(token.ScopeEmailVerification),
		VerificationRequired: true,
		Email:                ch.Email,
		CodeExpiresInSeconds: int(ch.TTL / time.Second),
	}, nil
}

func (s *authService) linkGoogleUser(ctx context.Context, repos *repository.Repository, email, googleID, name string) (*entity.User, error) {
	now := s.deps.Now()

	found, err := repos.User.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if found == nil {
		user := &entity.User{
			Base:     entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			Email:    email,
			FullName: optionalString(name),
			GoogleID: &googleID,
		}
		if err := repos.User.Create(ctx, user); err != nil {
			return nil, err
		}
		s.log.Info("User created from Google", zap.String("user_id", user.ID.String()))
		return user, nil
	}

	user, err := repos.User.FindByIDForUpdate(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, repository.ErrNotFound
	}

	if user.GoogleID != nil && *user.GoogleID != googleID {
		return nil, apperr.Conflict("Email already linked to another Google account")
	}

	changed := false
	if user.GoogleID == nil {
		user.GoogleID = &googleID
		changed = true
	}
	if (user.FullName == nil || *user.FullName == "") && strings.TrimSpace(name) != "" {
		user.FullName = optionalString(name)
		changed = true
	}
	if changed {
		user.UpdatedAt = now
		if err := repos.User.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	return user, nil
}

func (s *authService) ensureProfile(ctx context.Context, repos *repository.Repository, user *entity.User) (*entity.Profile, error) {
	return ensureProfile(ctx, repos, user, s.deps.Now())
}

func ensureProfile(ctx context.Context, repos *repository.Repository, user *entity.User, now time.Time) (*entity.Profile, error) {
	err := repos.Profile.Create(ctx, &entity.Profile{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		UserID:   user.ID,
		FullName: user.FullName,
	})
	if err != nil {
		return nil, err
	}
	return repos.Profile.FindByUserID(ctx, user.ID)
}

func (s *authService) authResponse(user *entity.User, profile *entity.Profile) (*response.AuthResponse, error) {
	tok, err := signSession(s.deps, user.ID)
	if err != nil {
		s.log.Error("Failed to sign session", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, err
	}
	return &response.AuthResponse{
		TokenResponse: *tok,
		User:          response.UserToResponse(user),
		Profile:       response.ProfileToResponse(profile),
	}, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return optionalString(*s)
}
