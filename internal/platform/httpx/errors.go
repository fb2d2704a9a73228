// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Details
// come from shared.UserSafeMessage so internals never leak.
func RespondError(w http.ResponseWriter, err error) {
	var policy *shared.PolicyViolationError
	var locked *shared.AccountLockedError
	switch {
	case errors.As(err, &locked):
		seconds := locked.RemainingMinutes() * 60
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		JSON(w, http.StatusLocked, ProblemDetail{
			Title:             "Account Locked",
			Status:            http.StatusLocked,
			Detail:            shared.UserSafeMessage(err),
			RetryAfterSeconds: seconds,
		})
	case errors.As(err, &policy):
		Problem(w, http.StatusBadRequest, "Password Policy Violation", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrCurrentPasswordIncorrect):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrAuthenticationRequired):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInsufficientPermission):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInfrastructure):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether RespondError maps err to a 5xx status.
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	var policy *shared.PolicyViolationError
	var locked *shared.AccountLockedError
	switch {
	case errors.As(err, &locked), errors.As(err, &policy):
		return false
	case errors.Is(err, shared.ErrInfrastructure):
		return true
	}
	for _, known := range []error{
		shared.ErrValidation, shared.ErrCurrentPasswordIncorrect, shared.ErrInvalidCredentials,
		shared.ErrAuthenticationRequired, shared.ErrInsufficientPermission, shared.ErrNotFound, shared.ErrDuplicate,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
