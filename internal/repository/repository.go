package repository

import (
	"context"
	"time"

	"github.com/nkiryanov/secureauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// Has to return apperrors.ErrDuplicateEmail or apperrors.ErrDuplicatePhone if email or phone is taken
	CreateUser(ctx context.Context, user models.User) (models.User, error)

	// Get user by it's id, email or phone
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (models.User, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)

	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error

	// Assign role to user. Assigning the same role twice is not an error
	// If role not exists must return apperrors.ErrRoleNotFound
	AssignRole(ctx context.Context, userID int64, role models.Role) error
}

// Session repository interface
// Sessions are never deleted, only revoked
type SessionRepo interface {
	// Create session
	// If session with the same refresh token exists must return apperrors.ErrSessionConflict
	Create(ctx context.Context, session models.Session) (models.Session, error)

	// If session not found must return apperrors.ErrSessionNotFound
	GetByID(ctx context.Context, id int64) (models.Session, error)

	// Return not revoked session even if it is expired
	// If there is no such session must return apperrors.ErrSessionNotFound
	GetActiveByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error)

	// Mark session revoked and expired at 'at'
	// Must not touch already revoked session. Unknown id is not an error
	Revoke(ctx context.Context, id int64, at time.Time) error

	// Revoke every not revoked session of the user, return how many were revoked
	RevokeAllByUser(ctx context.Context, userID int64, at time.Time) (int64, error)

	// Revoke sessions expired before 'now', return how many were revoked
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)

	// Set last used time. Must never move it backwards. Unknown id is not an error
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error

	// Sessions not revoked and not expired at 'now', newest first
	ListActiveByUser(ctx context.Context, userID int64, now time.Time, opts ListSessionsOpts) ([]models.Session, error)
	CountActiveByUser(ctx context.Context, userID int64, now time.Time) (int, error)
}

// Optional filters for listing sessions
type ListSessionsOpts struct {
	// Keep only sessions opened from these device types. Empty means any
	DeviceTypes []models.DeviceType
}

type Storage interface {
	User() UserRepo
	Session() SessionRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
