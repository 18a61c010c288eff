package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/secureauth/internal/handlers/middleware"
	"github.com/nkiryanov/secureauth/internal/logger"
	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type authService interface {
	// Has to return apperrors.ErrDuplicateEmail or apperrors.ErrDuplicatePhone if user already exists
	Register(ctx context.Context, params auth.RegisterParams) (models.AuthResult, error)

	// Has to return apperrors.ErrInvalidCredentials if credentials are wrong
	Login(ctx context.Context, params auth.LoginParams) (models.AuthResult, error)

	// Has to return apperrors.ErrInvalidToken, apperrors.ErrSessionRevoked or apperrors.ErrSessionExpired
	// if refresh is not possible
	Refresh(ctx context.Context, refreshToken string) (models.AuthResult, error)

	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error

	Authenticate(ctx context.Context, accessToken string) (models.Principal, error)
	Sessions(ctx context.Context, principal models.Principal, deviceType models.DeviceType) ([]models.Session, error)
}

func NewRouter(authService authService, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)
	h := &AuthHandler{auth: authService, logger: logger}

	apiauth := http.NewServeMux()

	apiauth.HandleFunc("POST /register", h.register)
	apiauth.HandleFunc("POST /login", h.login)
	apiauth.HandleFunc("POST /refresh", h.refresh)
	apiauth.HandleFunc("POST /logout", h.logout)

	apiauth.Handle("POST /logout-all", withAuth(http.HandlerFunc(h.logoutAll)))
	apiauth.Handle("GET /sessions", withAuth(http.HandlerFunc(h.sessions)))
	apiauth.Handle("GET /me", withAuth(http.HandlerFunc(h.me)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}
