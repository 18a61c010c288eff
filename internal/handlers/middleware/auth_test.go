package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/handlers/userctx"
	"github.com/nkiryanov/secureauth/internal/models"
)

// Allow to use a function as authenticator
type authFunc func(ctx context.Context, token string) (models.Principal, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	return f(ctx, token)
}

func TestAuthMiddleware(t *testing.T) {
	// Simple handler that try to get principal from context
	// If ok write user id to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set principal or write error to response
		principal, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(strconv.FormatInt(principal.UserID, 10)))
		require.NoError(t, err, "should write user id to response")
	})

	do := func(t *testing.T, a authenticator, header string) (int, string) {
		srv := httptest.NewServer(AuthMiddleware(a)(handler))
		defer srv.Close()

		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/test", nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		return resp.StatusCode, string(body)
	}

	t.Run("auth ok", func(t *testing.T) {
		var gotToken string
		a := authFunc(func(ctx context.Context, token string) (models.Principal, error) {
			gotToken = token
			return models.Principal{UserID: 42}, nil
		})

		code, body := do(t, a, "Bearer access-token")

		require.Equalf(t, http.StatusOK, code, "should return status OK. Resp: %s", body)
		require.Equal(t, "42", body, "should return user id in response")
		require.Equal(t, "access-token", gotToken)
	})

	t.Run("no token", func(t *testing.T) {
		a := authFunc(func(ctx context.Context, token string) (models.Principal, error) {
			t.Error("authenticator must not be called without token")
			return models.Principal{}, nil
		})

		for _, header := range []string{"", "Bearer", "Bearer ", "Basic dXNlcjpwd2Q="} {
			code, _ := do(t, a, header)
			require.Equal(t, http.StatusUnauthorized, code, "header %q", header)
		}
	})

	t.Run("auth fail", func(t *testing.T) {
		// Middleware that always fails
		a := authFunc(func(ctx context.Context, token string) (models.Principal, error) {
			return models.Principal{}, &apperrors.TokenError{Reason: apperrors.TokenExpired}
		})

		code, body := do(t, a, "Bearer expired")

		require.Equalf(t, http.StatusUnauthorized, code, "should return status Unauthorized. Resp: %s", body)
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			body,
		)
	})

	t.Run("store unavailable", func(t *testing.T) {
		a := authFunc(func(ctx context.Context, token string) (models.Principal, error) {
			return models.Principal{}, apperrors.StoreError(errors.New("connection refused"))
		})

		code, _ := do(t, a, "Bearer token")

		require.Equal(t, http.StatusServiceUnavailable, code)
	})
}
