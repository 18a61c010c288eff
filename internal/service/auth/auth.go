package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/clock"
	"github.com/nkiryanov/secureauth/internal/logger"
	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/service/session"
	"github.com/nkiryanov/secureauth/internal/service/user"
)

type tokenCodec interface {
	IssueAccess(userID int64) (models.IssuedToken, error)
	IssuePair(userID int64) (models.TokenPair, error)
	Verify(token string) (models.TokenClaims, error)
	AccessTTL() time.Duration
}

type sessionStore interface {
	Create(ctx context.Context, params session.CreateParams) (models.Session, error)
	Revoke(ctx context.Context, sessionID int64) error
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	FindActiveByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error)
	TouchLastUsed(ctx context.Context, sessionID int64, at time.Time) error
	ListActive(ctx context.Context, userID int64, deviceTypes ...models.DeviceType) ([]models.Session, error)
}

type userDirectory interface {
	CreateUser(ctx context.Context, params user.CreateUserParams) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	VerifyPassword(password string, hash string) bool
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

type Config struct {
	// If not set than wall clock is used
	Clock clock.Clock
}

// Auth service: registration, login, token refresh and logout
// Every call made on behalf of a user takes the user explicitly
type AuthService struct {
	tokens   tokenCodec
	sessions sessionStore
	users    userDirectory
	clock    clock.Clock
	logger   logger.Logger
}

func NewService(cfg Config, tokens tokenCodec, sessions sessionStore, users userDirectory, logger logger.Logger) (*AuthService, error) {
	if tokens == nil || sessions == nil || users == nil {
		return nil, errors.New("token manager, session and user services must not be nil")
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.Real
	}

	return &AuthService{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		clock:    cfg.Clock,
		logger:   logger,
	}, nil
}

type RegisterParams struct {
	Email    string
	Phone    string // optional
	Password string
	Device   models.Device
}

// Create user with default role and open the first session
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (models.AuthResult, error) {
	exists, err := s.users.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return models.AuthResult{}, err
	}
	if exists {
		return models.AuthResult{}, apperrors.ErrDuplicateEmail
	}

	if params.Phone != "" {
		exists, err = s.users.ExistsByPhone(ctx, params.Phone)
		if err != nil {
			return models.AuthResult{}, err
		}
		if exists {
			return models.AuthResult{}, apperrors.ErrDuplicatePhone
		}
	}

	// Email or phone may be taken concurrently, then creation fails with the same duplicate errors
	u, err := s.users.CreateUser(ctx, user.CreateUserParams{
		Email:    params.Email,
		Phone:    params.Phone,
		Password: params.Password,
	})
	if err != nil {
		return models.AuthResult{}, err
	}

	s.logger.Info("User registered", "user_id", u.ID)
	return s.openSession(ctx, u, params.Device)
}

type LoginParams struct {
	Email    string
	Password string
	Device   models.Device
}

// Check credentials and open new session. Sessions on other devices stay active
// Unknown email, inactive user and wrong password are not told apart
func (s *AuthService) Login(ctx context.Context, params LoginParams) (models.AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, params.Email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.AuthResult{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.AuthResult{}, err
	}

	if !u.IsActive || !s.users.VerifyPassword(params.Password, u.PasswordHash) {
		return models.AuthResult{}, apperrors.ErrInvalidCredentials
	}

	err = s.users.TouchLastLogin(ctx, u.ID, s.clock.Now())
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("can't update last login. Err: %w", err)
	}

	return s.openSession(ctx, u, params.Device)
}

func (s *AuthService) openSession(ctx context.Context, u models.User, device models.Device) (models.AuthResult, error) {
	pair, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	_, err = s.sessions.Create(ctx, session.CreateParams{
		UserID:       u.ID,
		RefreshToken: pair.Refresh.Value,
		Device:       device,
	})
	if err != nil {
		return models.AuthResult{}, err
	}

	return s.result(u, pair.Access.Value, pair.Refresh.Value), nil
}

// Issue new access token for valid refresh token
// Refresh token itself is returned unchanged and stays valid until its session ends
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.AuthResult, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return models.AuthResult{}, err
	}
	if claims.Type != models.TokenRefresh {
		return models.AuthResult{}, &apperrors.TokenError{
			Reason: apperrors.TokenUnsupported,
			Err:    fmt.Errorf("%s token can't be used to refresh", claims.Type),
		}
	}

	sess, err := s.sessions.FindActiveByRefreshToken(ctx, refreshToken)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return models.AuthResult{}, apperrors.ErrSessionRevoked
	case err != nil:
		return models.AuthResult{}, err
	}

	now := s.clock.Now()
	if !sess.IsActive(now) {
		s.logger.Info("Refresh with expired session, revoking it", "session_id", sess.ID, "user_id", sess.UserID)
		if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
			return models.AuthResult{}, errors.Join(apperrors.ErrSessionExpired, err)
		}
		return models.AuthResult{}, apperrors.ErrSessionExpired
	}

	u, err := s.users.GetByID(ctx, claims.SubjectID)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("can't get session user. Err: %w", err)
	}
	// Access token of inactive user is rejected by Authenticate anyway
	if !u.IsActive {
		return models.AuthResult{}, apperrors.ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccess(u.ID)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	err = s.sessions.TouchLastUsed(ctx, sess.ID, now)
	if err != nil {
		return models.AuthResult{}, err
	}

	return s.result(u, access.Value, refreshToken), nil
}

// Revoke session of the refresh token if there is one
// Unknown, revoked or even not verifiable tokens are fine, only storage errors are returned
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	sess, err := s.sessions.FindActiveByRefreshToken(ctx, refreshToken)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return nil
	case err != nil:
		return err
	}

	return s.sessions.Revoke(ctx, sess.ID)
}

// Revoke every session of the user
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	_, err := s.sessions.RevokeAllForUser(ctx, userID)
	return err
}

// Verify access token and build the principal acting with it
// Refresh token is not accepted here
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.Principal, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return models.Principal{}, err
	}
	if claims.Type != models.TokenAccess {
		return models.Principal{}, &apperrors.TokenError{
			Reason: apperrors.TokenUnsupported,
			Err:    fmt.Errorf("%s token can't be used to authenticate", claims.Type),
		}
	}

	u, err := s.users.GetByID(ctx, claims.SubjectID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.Principal{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.Principal{}, err
	}
	if !u.IsActive {
		return models.Principal{}, apperrors.ErrInvalidCredentials
	}

	return models.Principal{
		UserID:    u.ID,
		Email:     u.Email,
		Roles:     u.Roles,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Active sessions of the principal, newest first
// Unknown device type means sessions from any device
func (s *AuthService) Sessions(ctx context.Context, principal models.Principal, deviceType models.DeviceType) ([]models.Session, error) {
	if deviceType == models.DeviceUnknown {
		return s.sessions.ListActive(ctx, principal.UserID)
	}
	return s.sessions.ListActive(ctx, principal.UserID, deviceType)
}

func (s *AuthService) result(u models.User, access string, refresh string) models.AuthResult {
	return models.AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    models.BearerTokenType,
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
		UserID:       u.ID,
		Email:        u.Email,
		Phone:        u.Phone,
		Roles:        u.RoleNames(),
	}
}
