package request

// Passwords are capped at 72 bytes, the bcrypt input limit. The minimum
// length is configurable and checked by the service.
type SignupRequest struct {
	Email           string  `json:"email" validate:"required,email,max=255"`
	Password        string  `json:"password" validate:"required,max=72"`
	ConfirmPassword string  `json:"confirm_password" validate:"required,max=72"`
	FullName        *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type GoogleAuthRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type VerifyEmailCodeRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required"`
}

type VerifyEmailLinkRequest struct {
	MagicToken string `json:"magic_token" validate:"required"`
}

type ResendCodeRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72"`
}
