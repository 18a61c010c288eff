package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/clock"
	"github.com/nkiryanov/secureauth/internal/logger"
	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/repository"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

type Config struct {
	// How long session lives after creation
	// If not set than default is used
	TTL time.Duration

	// If not set than wall clock is used
	Clock clock.Clock
}

// Server side bookkeeping of refresh tokens: one session per device login
// Session service never decodes tokens, refresh token is an opaque string here
type SessionService struct {
	sessions repository.SessionRepo
	ttl      time.Duration
	clock    clock.Clock
	logger   logger.Logger
}

func NewService(sessions repository.SessionRepo, cfg Config, logger logger.Logger) (*SessionService, error) {
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("session TTL must not be negative, got %s", cfg.TTL)
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real
	}

	return &SessionService{
		sessions: sessions,
		ttl:      cfg.TTL,
		clock:    cfg.Clock,
		logger:   logger,
	}, nil
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

type CreateParams struct {
	UserID       int64
	RefreshToken string
	Device       models.Device
}

// Create active session expiring after session TTL
// Returns apperrors.ErrSessionConflict if the refresh token is already bound to a session
func (s *SessionService) Create(ctx context.Context, params CreateParams) (models.Session, error) {
	now := s.clock.Now()

	session, err := s.sessions.Create(ctx, models.Session{
		UserID:       params.UserID,
		RefreshToken: params.RefreshToken,
		DeviceInfo:   params.Device.Info,
		DeviceType:   params.Device.Type,
		IPAddress:    params.Device.IPAddress,
		CreatedAt:    now,
		LastUsedAt:   now,
		ExpiresAt:    now.Add(s.ttl),
		UpdatedAt:    now,
	})
	if err != nil {
		return session, fmt.Errorf("can't create session. Err: %w", err)
	}

	s.logger.Debug("Session created", "session_id", session.ID, "user_id", session.UserID, "device_type", session.DeviceType)
	return session, nil
}

// Revoke session. Revoking revoked or unknown session is not an error
func (s *SessionService) Revoke(ctx context.Context, sessionID int64) error {
	err := s.sessions.Revoke(ctx, sessionID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("can't revoke session. Err: %w", err)
	}

	s.logger.Debug("Session revoked", "session_id", sessionID)
	return nil
}

// Revoke every session of the user, e.g. 'logout from all devices'
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	revoked, err := s.sessions.RevokeAllByUser(ctx, userID, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("can't revoke user sessions. Err: %w", err)
	}

	s.logger.Info("User sessions revoked", "user_id", userID, "revoked", revoked)
	return revoked, nil
}

// Find not revoked session by refresh token. The session may be expired
func (s *SessionService) FindActiveByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error) {
	return s.sessions.GetActiveByRefreshToken(ctx, refreshToken)
}

// Session for the token exists, is not revoked and not expired
func (s *SessionService) IsValid(ctx context.Context, refreshToken string) (bool, error) {
	session, err := s.sessions.GetActiveByRefreshToken(ctx, refreshToken)

	switch {
	case err == nil:
		return session.IsActive(s.clock.Now()), nil
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *SessionService) TouchLastUsed(ctx context.Context, sessionID int64, at time.Time) error {
	return s.sessions.TouchLastUsed(ctx, sessionID, at)
}

// Revoke all sessions expired before now
func (s *SessionService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	revoked, err := s.sessions.RevokeExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("can't sweep expired sessions. Err: %w", err)
	}
	return revoked, nil
}

func (s *SessionService) CountActive(ctx context.Context, userID int64, now time.Time) (int, error) {
	return s.sessions.CountActiveByUser(ctx, userID, now)
}

// Active sessions of the user, newest first
// If device types given only sessions opened from them are returned
func (s *SessionService) ListActive(ctx context.Context, userID int64, deviceTypes ...models.DeviceType) ([]models.Session, error) {
	return s.sessions.ListActiveByUser(ctx, userID, s.clock.Now(), repository.ListSessionsOpts{DeviceTypes: deviceTypes})
}
