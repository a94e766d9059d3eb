package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindValidation                      Kind = "validation_error"
	KindUnauthorized                    Kind = "unauthorized"
	KindInvalidCredentials              Kind = "invalid_credentials"
	KindInvalidCode                     Kind = "invalid_code"
	KindInvalidOrExpired                Kind = "invalid_or_expired"
	KindRateLimited                     Kind = "rate_limited"
	KindDuplicateEmail                  Kind = "duplicate_email"
	KindAccountLinkedToExternalProvider Kind = "account_linked_to_external_provider"
	KindEmailNotVerified                Kind = "email_not_verified"
	KindConflict                        Kind = "conflict"
	KindNotFound                        Kind = "not_found"
	KindFreeLimitReached                Kind = "free_limit_reached"
	KindExternalServiceUnavailable      Kind = "external_service_unavailable"
	KindInvalidExternalToken            Kind = "invalid_external_token"
	KindInternal                        Kind = "internal_error"
)

// Error is the domain error returned by services. Message is always safe to
// show to the caller; the wrapped Err is for logs only.
type Error struct {
	Kind        Kind
	Message     string
	RetryAfter  time.Duration
	CheckoutURL string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// RetryAfterSeconds rounds up so clients never retry early.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func Internal(err error) *Error {
	return Wrap(KindInternal, "Internal server error", err)
}

func Unavailable(message string, err error) *Error {
	return Wrap(KindExternalServiceUnavailable, message, err)
}

func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

func FreeLimitReached(checkoutURL string) *Error {
	return &Error{
		Kind:        KindFreeLimitReached,
		Message:     "Free usage limit reached. Upgrade to keep practicing",
		CheckoutURL: checkoutURL,
	}
}

// Generic, enumeration-safe errors. The messages must not vary with the root
// cause.
var (
	ErrInvalidCredentials = New(KindInvalidCredentials, "Email or password incorrect")
	ErrInvalidCode        = New(KindInvalidCode, "Invalid verification code")
	ErrInvalidOrExpired   = New(KindInvalidOrExpired, "Invalid or expired token")
	ErrDuplicateEmail     = New(KindDuplicateEmail, "Email already registered")
	ErrLinkedToExternal   = New(KindAccountLinkedToExternalProvider, "Account linked to Google. Sign in with Google")
	ErrEmailNotVerified   = New(KindEmailNotVerified, "Email not verified")
	ErrInvalidExternal    = New(KindInvalidExternalToken, "Invalid Google token")
)

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns KindInternal for errors that are not domain errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
