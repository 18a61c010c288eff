package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/handlers/render"
	"github.com/nkiryanov/secureauth/internal/handlers/userctx"
	"github.com/nkiryanov/secureauth/internal/models"
)

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Principal, error)
}

// Require valid access token in 'Authorization: Bearer <token>' header
// Authenticated principal is passed to the next handler with request context
func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := a.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, apperrors.ErrStoreUnavailable):
				render.ServiceError(w, "Service unavailable", http.StatusServiceUnavailable)
				return
			default:
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, models.BearerTokenType) {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
