package response

import (
	"time"

	"provalab-api/internal/data/entity"
)

const TokenTypeBearer = "bearer"

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AuthResponse struct {
	TokenResponse
	User    UserResponse     `json:"user"`
	Profile *ProfileResponse `json:"profile,omitempty"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      *string   `json:"full_name,omitempty"`
	GoogleID      *string   `json:"google_id,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

type GoogleAuthResponse struct {
	PendingToken         string `json:"pending_token"`
	PendingTokenType     string `json:"pending_token_type"`
	VerificationRequired bool   `json:"verification_required"`
	Email                string `json:"email"`
	CodeExpiresInSeconds int    `json:"code_expires_in_seconds"`
}

// ResendCodeResponse only carries the new token when a code was sent.
type ResendCodeResponse struct {
	Message              string `json:"message"`
	PendingToken         string `json:"pending_token,omitempty"`
	Email                string `json:"email,omitempty"`
	CodeExpiresInSeconds int    `json:"code_expires_in_seconds,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func NewTokenResponse(token string, expiresAt time.Time) TokenResponse {
	return TokenResponse{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt,
	}
}

func UserToResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		Email:         user.Email,
		FullName:      user.FullName,
		GoogleID:      user.GoogleID,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}
