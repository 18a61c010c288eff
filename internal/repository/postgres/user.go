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
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (email, phone, password_hash, is_active)
VALUES ($1, NULLIF($2, ''), $3, $4)
RETURNING id, created_at, email, phone, password_hash, is_active, last_login, '{}'::text[]
`

// Create user without roles, use AssignRole to add them
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, user.Email, user.Phone, user.PasswordHash, user.IsActive)
	created, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if pgErr.ConstraintName == "users_phone_key" {
				return created, apperrors.ErrDuplicatePhone
			}
			return created, apperrors.ErrDuplicateEmail
		}

		return created, apperrors.StoreError(err)
	}

	return created, nil
}

// Users with roles aggregated in one column
const selectUser = `
SELECT u.id, u.created_at, u.email, u.phone, u.password_hash, u.is_active, u.last_login,
	COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')::text[]
FROM users u
LEFT JOIN user_roles ur ON ur.user_id = u.id
LEFT JOIN roles r ON r.id = ur.role_id
`

const getUserByID = `-- name: GetUserByID` + selectUser + `
WHERE u.id = $1
GROUP BY u.id
`

func (r *UserRepo) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return r.getUser(ctx, getUserByID, id)
}

const getUserByEmail = `-- name: GetUserByEmail` + selectUser + `
WHERE u.email = $1
GROUP BY u.id
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getUser(ctx, getUserByEmail, email)
}

const getUserByPhone = `-- name: GetUserByPhone` + selectUser + `
WHERE u.phone = $1
GROUP BY u.id
`

func (r *UserRepo) GetUserByPhone(ctx context.Context, phone string) (models.User, error) {
	return r.getUser(ctx, getUserByPhone, phone)
}

func (r *UserRepo) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	rows, _ := r.DB.Query(ctx, query, arg)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, apperrors.StoreError(err)
	}
}

const existsByEmail = `-- name: ExistsByEmail
SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)
`

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, existsByEmail, email)
}

const existsByPhone = `-- name: ExistsByPhone
SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1)
`

func (r *UserRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, existsByPhone, phone)
}

func (r *UserRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	rows, _ := r.DB.Query(ctx, query, arg)
	exists, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, apperrors.StoreError(err)
	}
	return exists, nil
}

const updateLastLogin = `-- name: UpdateLastLogin
UPDATE users SET last_login = $2
WHERE id = $1
`

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	tag, err := r.DB.Exec(ctx, updateLastLogin, userID, at)
	if err != nil {
		return apperrors.StoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// Return number of roles found by name, so missing role and already assigned one are told apart
const assignRole = `-- name: AssignRole
WITH role AS (
	SELECT id FROM roles WHERE name = $2
), assigned AS (
	INSERT INTO user_roles (user_id, role_id)
	SELECT $1, id FROM role
	ON CONFLICT DO NOTHING
)
SELECT count(*) FROM role
`

func (r *UserRepo) AssignRole(ctx context.Context, userID int64, role models.Role) error {
	rows, _ := r.DB.Query(ctx, assignRole, userID, string(role))
	found, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return apperrors.ErrUserNotFound
		}
		return apperrors.StoreError(err)
	}

	if found == 0 {
		return apperrors.ErrRoleNotFound
	}
	return nil
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var (
		u     models.User
		phone *string
		roles []string
	)

	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &phone, &u.PasswordHash, &u.IsActive, &u.LastLogin, &roles)
	if err != nil {
		return u, err
	}

	if phone != nil {
		u.Phone = *phone
	}
	u.Roles = make([]models.Role, 0, len(roles))
	for _, name := range roles {
		u.Roles = append(u.Roles, models.Role(name))
	}

	return u, nil
}
