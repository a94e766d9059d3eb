package utils

import (
	"encoding/json"
	"net/http"
	"strconv"

	"provalab-api/pkg/apperr"
)

type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// ResponseJSON writes JSON response with custom status code
func ResponseJSON(w http.ResponseWriter, code int, status bool, message string, data, errors any) {
	writeJSON(w, code, Response{
		Status:  status,
		Message: message,
		Data:    data,
		Errors:  errors,
	})
}

func writeJSON(w http.ResponseWriter, code int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// ------------- Success responses -------------

// returns 200 OK
func ResponseSuccess(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusOK, true, message, data, nil)
}

// returns 201 Created
func ResponseCreated(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusCreated, true, message, data, nil)
}

// ------------- Error responses -------------

// returns 400 Bad Request
func ResponseBadRequest(w http.ResponseWriter, message string, errors any) {
	writeJSON(w, http.StatusBadRequest, Response{
		Message: message,
		Kind:    string(apperr.KindValidation),
		Errors:  errors,
	})
}

// returns 401 Unauthorized
func ResponseUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, Response{Message: message, Kind: string(apperr.KindUnauthorized)})
}

// returns 404 Not Found
func ResponseNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, Response{Message: message, Kind: string(apperr.KindNotFound)})
}

// returns 500 Internal Server Error
func ResponseInternalError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, Response{Message: message, Kind: string(apperr.KindInternal)})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidCode, apperr.KindInvalidOrExpired,
		apperr.KindAccountLinkedToExternalProvider:
		return http.StatusBadRequest
	case apperr.KindUnauthorized, apperr.KindInvalidCredentials, apperr.KindInvalidExternalToken:
		return http.StatusUnauthorized
	case apperr.KindEmailNotVerified:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicateEmail, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindFreeLimitReached:
		return http.StatusPaymentRequired
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindExternalServiceUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ResponseError writes err using its domain kind. Errors that are not
// *apperr.Error become a generic 500 so driver messages never leak.
func ResponseError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err)
	}

	resp := Response{Message: e.Message, Kind: string(e.Kind)}

	switch e.Kind {
	case apperr.KindRateLimited:
		if secs := e.RetryAfterSeconds(); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			resp.Errors = map[string]int{"retry_after": secs}
		}
	case apperr.KindFreeLimitReached:
		resp.Errors = map[string]string{"checkout_url": e.CheckoutURL}
	}

	writeJSON(w, StatusFor(e.Kind), resp)
}
