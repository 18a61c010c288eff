package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/handlers/render"
	"github.com/nkiryanov/secureauth/internal/logger"
)

// Render service error with status matching its kind
// Unexpected errors are logged and hidden from the client
func serviceError(w http.ResponseWriter, err error, logger logger.Logger) {
	var tokenErr *apperrors.TokenError

	switch {
	case errors.As(err, &tokenErr):
		render.ServiceError(w, "Invalid token: "+string(tokenErr.Reason), http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrSessionRevoked):
		render.ServiceError(w, "Refresh token not found or has been revoked", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrSessionExpired):
		render.ServiceError(w, "Refresh token was expired. Please make a new signin request", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrDuplicateEmail):
		render.ServiceError(w, "Email is already in use", http.StatusConflict)
	case errors.Is(err, apperrors.ErrDuplicatePhone):
		render.ServiceError(w, "Phone number is already in use", http.StatusConflict)
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		logger.Error("Store unavailable", "error", err)
		render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
	default:
		logger.Error("Unexpected service error", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
