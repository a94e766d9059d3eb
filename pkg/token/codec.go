// Package token signs and verifies the scoped bearer tokens used by the
// verification and session flows, and hashes one-time secrets.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Scope string

const (
	ScopeEmailVerification Scope = "email_verification"
	ScopeEmailMagicLink    Scope = "email_magic_link"
	ScopeSession           Scope = "session"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeEmailVerification, ScopeEmailMagicLink, ScopeSession:
		return true
	default:
		return false
	}
}

// Claims is the JWT body. VerificationCodeID is empty for session tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope              Scope  `json:"scope"`
	VerificationCodeID string `json:"verification_code_id,omitempty"`
}

// Payload is the decoded, typed view of Claims.
type Payload struct {
	Subject            uuid.UUID
	Scope              Scope
	VerificationCodeID uuid.UUID
	ExpiresAt          time.Time
}

type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: []byte(secret), now: now}
}

// Sign returns the signed token and its absolute expiry.
func (c *Codec) Sign(p Payload, ttl time.Duration) (string, time.Time, error) {
	if !p.Scope.Valid() {
		return "", time.Time{}, errors.New("token: unknown scope")
	}
	if p.Subject == uuid.Nil {
		return "", time.Time{}, errors.New("token: empty subject")
	}

	issuedAt := c.now().UTC()
	expiresAt := issuedAt.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: p.Scope,
	}
	if p.VerificationCodeID != uuid.Nil {
		claims.VerificationCodeID = p.VerificationCodeID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Verify returns the payload of a well-formed, correctly signed, unexpired
// token. Any failure, malformed input included, yields (nil, false).
func (c *Codec) Verify(raw string) (*Payload, bool) {
	if raw == "" {
		return nil, false
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, false
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Scope.Valid() {
		return nil, false
	}

	p := &Payload{
		Subject:   subject,
		Scope:     claims.Scope,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.VerificationCodeID != "" {
		codeID, err := uuid.Parse(claims.VerificationCodeID)
		if err != nil {
			return nil, false
		}
		p.VerificationCodeID = codeID
	}

	return p, true
}

// VerifyScope is Verify plus a scope match. Verification scopes must also
// carry a code id.
func (c *Codec) VerifyScope(raw string, scope Scope) (*Payload, bool) {
	p, ok := c.Verify(raw)
	if !ok || p.Scope != scope {
		return nil, false
	}
	if scope != ScopeSession && p.VerificationCodeID == uuid.Nil {
		return nil, false
	}
	return p, true
}

// HashSecret is HMAC-SHA256 of raw keyed with the process secret, hex encoded.
func (c *Codec) HashSecret(raw string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// EqualHash compares two hex digests in constant time.
func (c *Codec) EqualHash(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
