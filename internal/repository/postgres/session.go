package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/secureauth/internal/apperrors"
	"github.com/nkiryanov/secureauth/internal/models"
	"github.com/nkiryanov/secureauth/internal/repository"
)

type SessionRepo struct {
	DB DBTX
}

const sessionColumns = `id, user_id, refresh_token, device_info, device_type, ip_address, created_at, last_used_at, expires_at, updated_at, revoked`

const createSession = `-- name: CreateSession
INSERT INTO sessions (user_id, refresh_token, device_info, device_type, ip_address, created_at, last_used_at, expires_at, updated_at, revoked)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
RETURNING ` + sessionColumns

func (r *SessionRepo) Create(ctx context.Context, s models.Session) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, createSession,
		s.UserID, s.RefreshToken, s.DeviceInfo, string(s.DeviceType), s.IPAddress,
		s.CreatedAt, s.LastUsedAt, s.ExpiresAt, s.UpdatedAt, s.Revoked,
	)
	created, err := pgx.CollectOneRow(rows, rowToSession)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return created, apperrors.ErrSessionConflict
			case pgerrcode.ForeignKeyViolation:
				return created, apperrors.ErrUserNotFound
			}
		}
		return created, apperrors.StoreError(err)
	}

	return created, nil
}

const getSessionByID = `-- name: GetSessionByID
SELECT ` + sessionColumns + `
FROM sessions
WHERE id = $1
`

func (r *SessionRepo) GetByID(ctx context.Context, id int64) (models.Session, error) {
	return r.getSession(ctx, getSessionByID, id)
}

const getActiveByRefreshToken = `-- name: GetActiveByRefreshToken
SELECT ` + sessionColumns + `
FROM sessions
WHERE refresh_token = $1 AND revoked = false
`

// Expiration is not checked here, caller decides what to do with expired session
func (r *SessionRepo) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (models.Session, error) {
	return r.getSession(ctx, getActiveByRefreshToken, refreshToken)
}

func (r *SessionRepo) getSession(ctx context.Context, query string, arg any) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, query, arg)
	session, err := pgx.CollectOneRow(rows, rowToSession)

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, apperrors.ErrSessionNotFound
	default:
		return session, apperrors.StoreError(err)
	}
}

// Revoked flag never goes back, so every revoke touches not revoked rows only
const revokeSession = `-- name: RevokeSession
UPDATE sessions
SET revoked = true, expires_at = LEAST(expires_at, $2), updated_at = $2
WHERE id = $1 AND revoked = false
`

func (r *SessionRepo) Revoke(ctx context.Context, id int64, at time.Time) error {
	_, err := r.DB.Exec(ctx, revokeSession, id, at)
	if err != nil {
		return apperrors.StoreError(err)
	}
	return nil
}

// Bulk revokes lock rows in id order, so they never deadlock each other
const revokeAllByUser = `-- name: RevokeAllByUser
UPDATE sessions
SET revoked = true, expires_at = LEAST(expires_at, $2), updated_at = $2
WHERE revoked = false AND id IN (
	SELECT id FROM sessions
	WHERE user_id = $1 AND revoked = false
	ORDER BY id
	FOR UPDATE
)
`

func (r *SessionRepo) RevokeAllByUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeAllByUser, userID, at)
	if err != nil {
		return 0, apperrors.StoreError(err)
	}
	return tag.RowsAffected(), nil
}

const revokeExpired = `-- name: RevokeExpired
UPDATE sessions
SET revoked = true, updated_at = $1
WHERE revoked = false AND id IN (
	SELECT id FROM sessions
	WHERE expires_at < $1 AND revoked = false
	ORDER BY id
	FOR UPDATE
)
`

func (r *SessionRepo) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, revokeExpired, now)
	if err != nil {
		return 0, apperrors.StoreError(err)
	}
	return tag.RowsAffected(), nil
}

const touchLastUsed = `-- name: TouchLastUsed
UPDATE sessions
SET last_used_at = GREATEST(last_used_at, $2), updated_at = GREATEST(updated_at, $2)
WHERE id = $1
`

func (r *SessionRepo) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.DB.Exec(ctx, touchLastUsed, id, at)
	if err != nil {
		return apperrors.StoreError(err)
	}
	return nil
}

const listActiveByUser = `-- name: ListActiveByUser
SELECT ` + sessionColumns + `
FROM sessions
WHERE user_id = $1 AND revoked = false AND expires_at > $2
	AND ($3::text[] IS NULL OR device_type = ANY($3::text[]))
ORDER BY created_at DESC, id DESC
`

func (r *SessionRepo) ListActiveByUser(ctx context.Context, userID int64, now time.Time, opts repository.ListSessionsOpts) ([]models.Session, error) {
	// NULL disables the filter
	var deviceTypes []string
	for _, d := range opts.DeviceTypes {
		deviceTypes = append(deviceTypes, string(d))
	}

	rows, _ := r.DB.Query(ctx, listActiveByUser, userID, now, deviceTypes)
	sessions, err := pgx.CollectRows(rows, rowToSession)
	if err != nil {
		return nil, apperrors.StoreError(err)
	}
	return sessions, nil
}

const countActiveByUser = `-- name: CountActiveByUser
SELECT count(*)
FROM sessions
WHERE user_id = $1 AND revoked = false AND expires_at > $2
`

func (r *SessionRepo) CountActiveByUser(ctx context.Context, userID int64, now time.Time) (int, error) {
	rows, _ := r.DB.Query(ctx, countActiveByUser, userID, now)
	count, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, apperrors.StoreError(err)
	}
	return int(count), nil
}

func rowToSession(row pgx.CollectableRow) (models.Session, error) {
	var (
		s          models.Session
		deviceType *string
	)

	err := row.Scan(
		&s.ID, &s.UserID, &s.RefreshToken, &s.DeviceInfo, &deviceType, &s.IPAddress,
		&s.CreatedAt, &s.LastUsedAt, &s.ExpiresAt, &s.UpdatedAt, &s.Revoked,
	)
	if deviceType != nil {
		s.DeviceType = models.DeviceType(*deviceType)
	}

	return s, err
}
