package adaptor

import (
	"net/http"

	"provalab-api/internal/dto/request"
	"provalab-api/internal/usecase"
	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

type AuthHandler struct {
	auth         usecase.AuthService
	verification usecase.VerificationService
	password     usecase.PasswordService
	user         usecase.UserService
	log          *zap.Logger
}

func NewAuthHandler(service *usecase.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         service.Auth,
		verification: service.Verification,
		password:     service.Password,
		user:         service.User,
		log:          log.With(zap.String("handler", "auth")),
	}
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req request.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.auth.Signup(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "sign up")
		return
	}

	utils.ResponseCreated(w, "Signup successful", response)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "login")
		return
	}

	utils.ResponseSuccess(w, "Login successful", response)
}

// Google handles POST /api/auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req request.GoogleAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.auth.StartGoogleAuth(r.Context(), &req, utils.ClientIP(r))
	if err != nil {
		handleServiceError(h.log, w, err, "start Google sign-in")
		return
	}

	utils.ResponseSuccess(w, "Verification code sent", response)
}

// VerifyEmailCode handles POST /api/auth/verify-email-code
func (h *AuthHandler) VerifyEmailCode(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyEmailCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.verification.RedeemCode(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "verify email code")
		return
	}

	utils.ResponseSuccess(w, "Email verified", response)
}

// VerifyEmailLink handles POST /api/auth/verify-email-link
func (h *AuthHandler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyEmailLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.verification.RedeemMagicLink(r.Context(), req.MagicToken)
	if err != nil {
		handleServiceError(h.log, w, err, "verify email link")
		return
	}

	utils.ResponseSuccess(w, "Email verified", response)
}

// ResendCode handles POST /api/auth/resend-code
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req request.ResendCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.verification.Resend(r.Context(), req.PendingToken, utils.ClientIP(r))
	if err != nil {
		handleServiceError(h.log, w, err, "resend code")
		return
	}

	utils.ResponseSuccess(w, response.Message, response)
}

// ForgotPassword handles POST /api/auth/forgot-password. The body is the
// same whether or not the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req request.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response := h.password.RequestReset(r.Context(), &req, utils.ClientIP(r))
	utils.ResponseSuccess(w, response.Message, response)
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req request.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.password.ResetPassword(r.Context(), &req)
	if err != nil {
		handleServiceError(h.log, w, err, "reset password")
		return
	}

	utils.ResponseSuccess(w, response.Message, response)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.user.Me(r.Context(), userID)
	if err != nil {
		handleServiceError(h.log, w, err, "get current user")
		return
	}

	utils.ResponseSuccess(w, "User retrieved successfully", user)
}
