package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/clubops/memberauth/services/credentials"
	"github.com/clubops/memberauth/services/pin"
	"github.com/clubops/memberauth/services/ratelimit"
	"github.com/clubops/memberauth/services/refreshtoken"
	"github.com/clubops/memberauth/services/twofa"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps service errors onto stable machine-readable codes. Unmapped
// errors deliberately collapse to a generic 500 so internals never leak.
func (h *Handler) writeError(c echo.Context, err error) error {
	var lockedErr *credentials.LockedError
	if errors.As(err, &lockedErr) {
		return c.JSON(http.StatusLocked, errorResponse{
			Code:    "account_locked",
			Message: lockedErr.Error(),
		})
	}

	var attemptsErr *credentials.AttemptsError
	if errors.As(err, &attemptsErr) {
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "invalid_credentials",
			Message: attemptsErr.Error(),
		})
	}

	var pinLockedErr *pin.LockedError
	if errors.As(err, &pinLockedErr) {
		return c.JSON(http.StatusLocked, errorResponse{
			Code:    "pin_locked",
			Message: pinLockedErr.Error(),
		})
	}

	var pinAttemptsErr *pin.AttemptsError
	if errors.As(err, &pinAttemptsErr) {
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "invalid_pin",
			Message: pinAttemptsErr.Error(),
		})
	}

	var rateErr *ratelimit.RateLimitError
	if errors.As(err, &rateErr) {
		c.Response().Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds()))
		return c.JSON(http.StatusTooManyRequests, errorResponse{
			Code:    "rate_limited",
			Message: rateErr.Error(),
		})
	}

	switch {
	case errors.Is(err, credentials.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "invalid_credentials",
			Message: "Invalid email or password",
		})
	case errors.Is(err, credentials.ErrAccountInactive):
		return c.JSON(http.StatusForbidden, errorResponse{
			Code:    "account_inactive",
			Message: "Account is not active",
		})
	case errors.Is(err, credentials.ErrMembershipInvalid):
		return c.JSON(http.StatusForbidden, errorResponse{
			Code:    "membership_invalid",
			Message: "Membership is not valid",
		})
	case errors.Is(err, pin.ErrPINNotSet):
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "pin_not_set",
			Message: "No PIN configured for this account",
		})
	case errors.Is(err, pin.ErrNotAuthorized):
		return c.JSON(http.StatusForbidden, errorResponse{
			Code:    "not_authorized",
			Message: "Not authorized to perform this action",
		})
	case errors.Is(err, twofa.ErrChallengeExpired):
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "challenge_expired",
			Message: "Verification window has expired, please log in again",
		})
	case errors.Is(err, twofa.ErrChallengeInvalid):
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "challenge_invalid",
			Message: "Invalid verification session",
		})
	case errors.Is(err, twofa.ErrInvalidCode), errors.Is(err, twofa.ErrCodeAlreadyUsed):
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "invalid_code",
			Message: "Invalid verification code",
		})
	case errors.Is(err, twofa.ErrUnsupportedChannel):
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "unsupported_channel",
			Message: "Unsupported verification channel",
		})
	case errors.Is(err, twofa.ErrNotEnrolled):
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "not_enrolled",
			Message: "Two-factor authentication is not enabled",
		})
	case errors.Is(err, twofa.ErrAlreadyEnabled):
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "already_enabled",
			Message: "Two-factor authentication is already enabled",
		})
	case errors.Is(err, twofa.ErrSetupNotStarted):
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "setup_not_started",
			Message: "Two-factor setup has not been started",
		})
	case errors.Is(err, refreshtoken.ErrRefreshTokenExpired):
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "refresh_token_expired",
			Message: "Session has expired, please log in again",
		})
	case errors.Is(err, refreshtoken.ErrRefreshTokenInvalid),
		errors.Is(err, refreshtoken.ErrFingerprintMismatch):
		return c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "refresh_token_invalid",
			Message: "Invalid session, please log in again",
		})
	}

	if h.logger != nil {
		h.logger.Error("unhandled error in request", zap.Error(err), zap.String("path", c.Path()))
	}
	return c.JSON(http.StatusInternalServerError, errorResponse{
		Code:    "internal_error",
		Message: "An internal error occurred",
	})
}
