package adaptor

import (
	"errors"
	"net/http"

	"account-service/internal/usecase"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

// errorStatus pairs each service sentinel with its HTTP status.
var errorStatus = []struct {
	err  error
	code int
}{
	{usecase.ErrValidation, http.StatusBadRequest},
	{usecase.ErrDuplicateEmail, http.StatusConflict},
	{usecase.ErrUserNotFound, http.StatusNotFound},
	{usecase.ErrAlreadyVerified, http.StatusBadRequest},
	{usecase.ErrCodeExpired, http.StatusGone},
	{usecase.ErrCodeMismatch, http.StatusBadRequest},
	{usecase.ErrNoResetInFlight, http.StatusBadRequest},
	{usecase.ErrTooManyAttempts, http.StatusTooManyRequests},
	{usecase.ErrNotVerified, http.StatusForbidden},
	{usecase.ErrInvalidCredentials, http.StatusUnauthorized},
	{usecase.ErrSessionNotFound, http.StatusUnauthorized},
	{usecase.ErrAlreadySubscribed, http.StatusConflict},
	{usecase.ErrMissingReference, http.StatusBadRequest},
	{usecase.ErrReferenceMismatch, http.StatusConflict},
	{usecase.ErrProvider, http.StatusBadGateway},
}

// statusFor returns the HTTP status for err, 500 when it is not a known sentinel.
func statusFor(err error) (int, bool) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.code, true
		}
	}
	return http.StatusInternalServerError, false
}

// handleServiceError writes the error envelope for a failed service call.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	code, known := statusFor(err)
	if !known {
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	if code == http.StatusBadGateway {
		log.Error(operation+" failed - payment provider", zap.Error(err))
		utils.ResponseError(w, code, usecase.ErrProvider.Error())
		return
	}

	log.Warn(operation+" failed", zap.Error(err), zap.Int("status", code))
	utils.ResponseError(w, code, err.Error())
}
