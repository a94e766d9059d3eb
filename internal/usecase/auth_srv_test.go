package usecase

import (
	"context"
	"errors"
	"testing"

	"provalab-api/internal/dto/request"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/oauth"
	"provalab-api/pkg/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSignupCreatesVerifiedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Auth.Signup(ctx, &request.SignupRequest{
		Email:           " Ana@Example.com ",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		FullName:        strPtr("Ana Lima"),
	})
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.True(t, resp.User.EmailVerified)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "Ana Lima", *resp.Profile.FullName)

	session, ok := f.codec.VerifyScope(resp.AccessToken, token.ScopeSession)
	require.True(t, ok)
	assert.Equal(t, resp.User.ID, session.Subject.String())

	plan, err := f.store.Repos().PlanProfile.FindByUserID(ctx, session.Subject)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, 5, plan.FreeUses)
	assert.Zero(t, plan.UsesCount)
}

func TestSignupErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, "taken@example.com", "secret1", true)
	f.createUser(t, "google@example.com", "", true)

	tests := []struct {
		name string
		req  request.SignupRequest
		want apperr.Kind
	}{
		{"mismatch", request.SignupRequest{Email: "new@example.com", Password: "secret1", ConfirmPassword: "secret2"}, apperr.KindValidation},
		{"too short", request.SignupRequest{Email: "new@example.com", Password: "abc", ConfirmPassword: "abc"}, apperr.KindValidation},
		{"verified account", request.SignupRequest{Email: "TAKEN@example.com", Password: "secret1", ConfirmPassword: "secret1"}, apperr.KindDuplicateEmail},
		{"google account", request.SignupRequest{Email: "google@example.com", Password: "secret1", ConfirmPassword: "secret1"}, apperr.KindAccountLinkedToExternalProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Auth.Signup(ctx, &tt.req)
			assert.Equal(t, tt.want, apperr.KindOf(err), "got %v", err)
		})
	}
}

func TestSignupResumesUnverifiedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := f.createUser(t, "ana@example.com", "secret1", false)

	_, err := f.svc.Auth.Signup(ctx, &request.SignupRequest{Email: "ana@example.com", Password: "wrong-one", ConfirmPassword: "wrong-one"})
	assert.True(t, apperr.Is(err, apperr.KindDuplicateEmail), "got %v", err)

	resp, err := f.svc.Auth.Signup(ctx, &request.SignupRequest{Email: "ana@example.com", Password: "secret1", ConfirmPassword: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID.String(), resp.User.ID)
	assert.True(t, f.user(t, existing.ID).EmailVerified)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, "ana@example.com", "secret1", true)
	f.createUser(t, "pending@example.com", "secret1", false)
	f.createUser(t, "google@example.com", "", true)

	resp, err := f.svc.Auth.Login(ctx, &request.LoginRequest{Email: "ANA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	_, unknown := f.svc.Auth.Login(ctx, &request.LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	_, wrong := f.svc.Auth.Login(ctx, &request.LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
	require.Error(t, unknown)
	require.Error(t, wrong)
	assert.Equal(t, unknown.Error(), wrong.Error())
	assert.True(t, apperr.Is(wrong, apperr.KindInvalidCredentials))

	_, err = f.svc.Auth.Login(ctx, &request.LoginRequest{Email: "google@example.com", Password: "secret1"})
	assert.True(t, apperr.Is(err, apperr.KindAccountLinkedToExternalProvider), "got %v", err)

	_, err = f.svc.Auth.Login(ctx, &request.LoginRequest{Email: "pending@example.com", Password: "secret1"})
	assert.True(t, apperr.Is(err, apperr.KindEmailNotVerified), "got %v", err)
}

func TestStartGoogleAuthCreatesUserAndSendsCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Auth.StartGoogleAuth(ctx, &request.GoogleAuthRequest{AccessToken: "ya29.token"}, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, resp.VerificationRequired)
	assert.Equal(t, "email_verification", resp.PendingTokenType)
	assert.Equal(t, "ana@example.com", resp.Email)
	assert.Equal(t, 600, resp.CodeExpiresInSeconds)

	msg := f.mail.last(t)
	assert.Contains(t, msg.Body, "Ola, Ana!")
	assert.Contains(t, msg.Body, "magic_token=")

	session, err := f.svc.Verification.RedeemCode(ctx, &request.VerifyEmailCodeRequest{
		PendingToken: resp.PendingToken,
		Code:         codeFrom(t, msg),
	})
	require.NoError(t, err)

	p, ok := f.codec.VerifyScope(session.AccessToken, token.ScopeSession)
	require.True(t, ok)
	user := f.user(t, p.Subject)
	assert.True(t, user.EmailVerified)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "google-1", *user.GoogleID)

	plan, err := f.store.Repos().PlanProfile.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, plan)
}

func TestStartGoogleAuthLinksExistingAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := f.createUser(t, "ana@example.com", "secret1", true)

	_, err := f.svc.Auth.StartGoogleAuth(ctx, &request.GoogleAuthRequest{AccessToken: "ya29.token"}, "")
	require.NoError(t, err)

	user := f.user(t, existing.ID)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "google-1", *user.GoogleID)
	require.NotNil(t, user.FullName)
	assert.Equal(t, "Ana", *user.FullName)
}

func TestStartGoogleAuthConflict(t *testing.T) {
	f := newFixture(t)
	f.google.AuthenticateFunc = func(context.Context, string) (*oauth.Identity, error) {
		return &oauth.Identity{ExternalID: "google-2", Email: "google@example.com", EmailVerified: true}, nil
	}
	f.createUser(t, "google@example.com", "", true)

	_, err := f.svc.Auth.StartGoogleAuth(context.Background(), &request.GoogleAuthRequest{AccessToken: "ya29.token"}, "")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Zero(t, f.mail.count())
}

func TestStartGoogleAuthProviderErrors(t *testing.T) {
	f := newFixture(t)

	f.google.AuthenticateFunc = func(context.Context, string) (*oauth.Identity, error) {
		return nil, apperr.ErrInvalidExternal
	}
	_, err := f.svc.Auth.StartGoogleAuth(context.Background(), &request.GoogleAuthRequest{AccessToken: "x"}, "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidExternalToken), "got %v", err)

	f.google.AuthenticateFunc = func(context.Context, string) (*oauth.Identity, error) {
		return nil, errors.New("dial tcp: timeout")
	}
	_, err = f.svc.Auth.StartGoogleAuth(context.Background(), &request.GoogleAuthRequest{AccessToken: "x"}, "")
	assert.True(t, apperr.Is(err, apperr.KindExternalServiceUnavailable), "got %v", err)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "secret1", true)

	resp, err := f.svc.User.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", resp.Email)

	_, err = f.svc.User.Me(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
