package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCodec("unit-test-secret", clock.Now), clock
}

func TestSignVerifyRoundTrip(t *testing.T) {
	codec, _ := newCodec(t)
	userID, codeID := uuid.New(), uuid.New()

	raw, exp, err := codec.Sign(Payload{
		Subject:            userID,
		Scope:              ScopeEmailVerification,
		VerificationCodeID: codeID,
	}, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), exp)

	p, ok := codec.VerifyScope(raw, ScopeEmailVerification)
	require.True(t, ok)
	assert.Equal(t, userID, p.Subject)
	assert.Equal(t, codeID, p.VerificationCodeID)
	assert.Equal(t, ScopeEmailVerification, p.Scope)
}

func TestVerifyRejectsExpired(t *testing.T) {
	codec, clock := newCodec(t)

	raw, _, err := codec.Sign(Payload{Subject: uuid.New(), Scope: ScopeSession}, time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Minute)
	_, ok := codec.Verify(raw)
	assert.False(t, ok)
}

func TestVerifyRejectsWrongScope(t *testing.T) {
	codec, _ := newCodec(t)

	raw, _, err := codec.Sign(Payload{Subject: uuid.New(), Scope: ScopeEmailVerification, VerificationCodeID: uuid.New()}, time.Minute)
	require.NoError(t, err)

	_, ok := codec.VerifyScope(raw, ScopeSession)
	assert.False(t, ok)
	_, ok = codec.VerifyScope(raw, ScopeEmailMagicLink)
	assert.False(t, ok)
}

func TestVerifyScopeRequiresCodeID(t *testing.T) {
	codec, _ := newCodec(t)

	raw, _, err := codec.Sign(Payload{Subject: uuid.New(), Scope: ScopeEmailMagicLink}, time.Minute)
	require.NoError(t, err)

	_, ok := codec.VerifyScope(raw, ScopeEmailMagicLink)
	assert.False(t, ok)
}

func TestVerifyMalformedInput(t *testing.T) {
	codec, _ := newCodec(t)

	for _, raw := range []string{"", "garbage", "a.b.c", strings.Repeat("x", 4096)} {
		assert.NotPanics(t, func() {
			_, ok := codec.Verify(raw)
			assert.False(t, ok)
		})
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	codec, clock := newCodec(t)
	other := NewCodec("another-secret", clock.Now)

	raw, _, err := other.Sign(Payload{Subject: uuid.New(), Scope: ScopeSession}, time.Minute)
	require.NoError(t, err)

	_, ok := codec.Verify(raw)
	assert.False(t, ok)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	codec, clock := newCodec(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
		Scope: ScopeSession,
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, ok := codec.Verify(raw)
	assert.False(t, ok)
}

func TestSignRejectsUnknownScope(t *testing.T) {
	codec, _ := newCodec(t)
	_, _, err := codec.Sign(Payload{Subject: uuid.New(), Scope: "admin"}, time.Minute)
	assert.Error(t, err)
}

func TestHashSecret(t *testing.T) {
	codec, clock := newCodec(t)

	h1 := codec.HashSecret("123456")
	h2 := codec.HashSecret("123456")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.True(t, codec.EqualHash(h1, h2))
	assert.False(t, codec.EqualHash(h1, codec.HashSecret("123457")))

	// keyed: same input, different secret, different digest
	other := NewCodec("another-secret", clock.Now)
	assert.NotEqual(t, h1, other.HashSecret("123456"))
}
