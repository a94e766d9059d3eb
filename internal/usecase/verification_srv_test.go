package usecase

import (
	"context"
	"testing"
	"time"

	"provalab-api/internal/dto/request"
	"provalab-api/pkg/apperr"
	"provalab-api/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redeem(f *fixture, ch *Challenge, code string) error {
	_, err := f.svc.Verification.RedeemCode(context.Background(), &request.VerifyEmailCodeRequest{
		PendingToken: ch.PendingToken,
		Code:         code,
	})
	return err
}

func TestIssueInvalidatesPreviousCode(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "", false)

	first := f.issue(t, user)
	second := f.issue(t, user)

	err := redeem(f, first, first.Code)
	assert.True(t, apperr.Is(err, apperr.KindInvalidOrExpired), "got %v", err)

	require.NoError(t, redeem(f, second, second.Code))
	assert.True(t, f.user(t, user.ID).EmailVerified)
}

func TestRedeemCodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "", false)
	ch := f.issue(t, user)

	resp, err := f.svc.Verification.RedeemCode(context.Background(), &request.VerifyEmailCodeRequest{
		PendingToken: ch.PendingToken,
		Code:         ch.Code,
	})
	require.NoError(t, err)

	session, ok := f.codec.VerifyScope(resp.AccessToken, token.ScopeSession)
	require.True(t, ok)
	assert.Equal(t, user.ID, session.Subject)
	assert.Equal(t, "bearer", resp.TokenType)

	err = redeem(f, ch, ch.Code)
	assert.True(t, apperr.Is(err, apperr.KindInvalidOrExpired), "got %v", err)
}

func TestRedeemCodeAttemptCap(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "", false)
	ch := f.issue(t, user)
	bad := wrongCode(ch.Code)

	for i := 1; i < f.cfg.Verification.MaxAttempts; i++ {
		err := redeem(f, ch, bad)
		require.True(t, apperr.Is(err, apperr.KindInvalidCode), "attempt %d: %v", i, err)
	}

	err := redeem(f, ch, bad)
	assert.True(t, apperr.Is(err, apperr.KindRateLimited), "got %v", err)

	err = redeem(f, ch, ch.Code)
	assert.True(t, apperr.Is(err, apperr.KindInvalidOrExpired), "got %v", err)
	assert.False(t, f.user(t, user.ID).EmailVerified)
}

func TestRedeemCodeRejects(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "", false)
	ch := f.issue(t, user)

	t.Run("not six digits", func(t *testing.T) {
		err := redeem(f, ch, "12a456")
		assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
	})

	t.Run("garbage token", func(t *testing.T) {
		err := redeem(f, &Challenge{PendingToken: "nope"}, ch.Code)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)
	})

	t.Run("magic token used as pending token", func(t *testing.T) {
		link, err := f.svc.Verification.IssueMagicLink(user.ID, ch.CodeID)
		require.NoError(t, err)
		magic := queryValue(t, magicParam, link)

		err = redeem(f, &Challenge{PendingToken: magic}, ch.Code)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)
	})

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(11 * time.Minute)
		err := redeem(f, ch, ch.Code)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized) || apperr.Is(err, apperr.KindInvalidOrExpired), "got %v", err)
	})
}

func TestMagicLinkConsumesSharedCode(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "", false)
	ch := f.issue(t, user)

	link, err := f.svc.Verification.IssueMagicLink(user.ID, ch.CodeID)
	require.NoError(t, err)
	assert.Contains(t, link, "https://app.test/verify-email?magic_token=")

	resp, err := f.svc.Verification.RedeemMagicLink(context.Background(), queryValue(t, magicParam, link))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.True(t, f.user(t, user.ID).EmailVerified)

	err = redeem(f, ch, ch.Code)
	assert.True(t, apperr.Is(err, apperr.KindInvalidOrExpired), "got %v", err)

	_, err = f.svc.Verification.RedeemMagicLink(context.Background(), ch.PendingToken)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized), "got %v", err)
}

func TestResendCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "", false)
	ch := f.issue(t, user)

	f.clock.Advance(61 * time.Second)
	resp, err := f.svc.Verification.Resend(ctx, ch.PendingToken, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, ResendSentMessage, resp.Message)
	assert.NotEmpty(t, resp.PendingToken)
	assert.Equal(t, 1, f.mail.count())

	f.clock.Advance(10 * time.Second)
	_, err = f.svc.Verification.Resend(ctx, resp.PendingToken, "10.0.0.1")
	require.True(t, apperr.Is(err, apperr.KindRateLimited), "got %v", err)
	e, _ := apperr.As(err)
	assert.Equal(t, 50, e.RetryAfterSeconds())
	assert.Equal(t, 1, f.mail.count())

	f.clock.Advance(51 * time.Second)
	again, err := f.svc.Verification.Resend(ctx, resp.PendingToken, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.mail.count())

	// the emailed code belongs to the newest challenge
	_, err = f.svc.Verification.RedeemCode(ctx, &request.VerifyEmailCodeRequest{
		PendingToken: again.PendingToken,
		Code:         codeFrom(t, f.mail.last(t)),
	})
	require.NoError(t, err)
}

func TestResendHidesAccountState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.Verification.Resend(ctx, "not-a-token", "")
	require.NoError(t, err)
	assert.Equal(t, GenericResendMessage, resp.Message)
	assert.Empty(t, resp.PendingToken)

	verified := f.createUser(t, "bia@example.com", "", true)
	ch := f.issue(t, verified)
	f.clock.Advance(2 * time.Minute)

	resp, err = f.svc.Verification.Resend(ctx, ch.PendingToken, "")
	require.NoError(t, err)
	assert.Equal(t, GenericResendMessage, resp.Message)
	assert.Zero(t, f.mail.count())
}

func TestResendSurfacesDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "ana@example.com", "", false)
	ch := f.issue(t, user)
	f.mail.err = assert.AnError

	f.clock.Advance(2 * time.Minute)
	_, err := f.svc.Verification.Resend(context.Background(), ch.PendingToken, "")
	assert.True(t, apperr.Is(err, apperr.KindExternalServiceUnavailable), "got %v", err)
}
